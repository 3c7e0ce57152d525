package flags

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// CorpusConfig is the YAML configuration for ingestion and retrieval
// behavior.
type CorpusConfig struct {
	Corpus struct {
		Paths []string `yaml:"paths"`
	} `yaml:"corpus"`
	Chunking struct {
		TargetSize int `yaml:"target_size"`
		Overlap    int `yaml:"overlap"`
	} `yaml:"chunking"`
	Retrieval struct {
		TopK     int     `yaml:"top_k"`
		MinScore float64 `yaml:"min_score"`
	} `yaml:"retrieval"`
	History struct {
		MaxTurns int `yaml:"max_turns"`
		MaxChars int `yaml:"max_chars"`
	} `yaml:"history"`
}

func defaultCorpusConfig() CorpusConfig {
	cfg := CorpusConfig{}
	cfg.Chunking.TargetSize = 800
	cfg.Chunking.Overlap = 200
	cfg.Retrieval.TopK = 5
	cfg.Retrieval.MinScore = 0.2
	cfg.History.MaxTurns = 6
	cfg.History.MaxChars = 6000
	return cfg
}

// CorpusFlags locates the corpus config file.
type CorpusFlags struct {
	ConfigPath string
}

func NewCorpusFlags() *CorpusFlags {
	return &CorpusFlags{}
}

func (f *CorpusFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", f.ConfigPath, "Path to the corpus YAML config")
}

// GetConfig loads the YAML config, falling back to defaults for anything
// unset. A missing --config is fine; a named but unreadable file is not.
func (f *CorpusFlags) GetConfig() (*CorpusConfig, error) {
	cfg := defaultCorpusConfig()
	if f.ConfigPath == "" {
		return &cfg, nil
	}

	content, err := os.ReadFile(f.ConfigPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading corpus config %s", f.ConfigPath)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing corpus config %s", f.ConfigPath)
	}

	defaults := defaultCorpusConfig()
	if cfg.Chunking.TargetSize <= 0 {
		cfg.Chunking.TargetSize = defaults.Chunking.TargetSize
	}
	if cfg.Chunking.Overlap < 0 {
		cfg.Chunking.Overlap = defaults.Chunking.Overlap
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = defaults.Retrieval.TopK
	}
	if cfg.History.MaxTurns <= 0 {
		cfg.History.MaxTurns = defaults.History.MaxTurns
	}
	if cfg.History.MaxChars <= 0 {
		cfg.History.MaxChars = defaults.History.MaxChars
	}
	return &cfg, nil
}
