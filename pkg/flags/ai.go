package flags

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/redclouds/erp-assistant/pkg/ai"
	"github.com/redclouds/erp-assistant/pkg/apis/cache"
	"github.com/redclouds/erp-assistant/pkg/embedding"
)

// AIFlags configures the generative model and the embedding endpoint.
type AIFlags struct {
	Endpoint           string
	Model              string
	EmbeddingModel     string
	EmbeddingDimension int
	MaxTokens          int64
	GenerationTimeout  time.Duration
	RetrievalTimeout   time.Duration
	LocalEmbeddings    bool
}

func NewAIFlags() *AIFlags {
	return &AIFlags{
		Model:              "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		MaxTokens:          1024,
		GenerationTimeout:  60 * time.Second,
		RetrievalTimeout:   10 * time.Second,
	}
}

func (f *AIFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Endpoint, "ai-endpoint", f.Endpoint, "URL for an OpenAI-compatible endpoint. Set OPENAI_API_KEY to specify an API key.")
	fs.StringVar(&f.Model, "ai-model", f.Model, "The model used to generate answers")
	fs.StringVar(&f.EmbeddingModel, "embedding-model", f.EmbeddingModel, "The model used to embed chunks and questions")
	fs.IntVar(&f.EmbeddingDimension, "embedding-dimension", f.EmbeddingDimension, "Expected embedding vector dimension")
	fs.Int64Var(&f.MaxTokens, "ai-max-tokens", f.MaxTokens, "Upper bound on generated tokens per answer")
	fs.DurationVar(&f.GenerationTimeout, "ai-timeout", f.GenerationTimeout, "Timeout for one model invocation")
	fs.DurationVar(&f.RetrievalTimeout, "retrieval-timeout", f.RetrievalTimeout, "Timeout for embedding and index queries per turn")
	fs.BoolVar(&f.LocalEmbeddings, "local-embeddings", f.LocalEmbeddings, "Use the deterministic local embedder instead of the embeddings endpoint")
}

func (f *AIFlags) GetLLMClient() *ai.LLMClient {
	return ai.NewLLMClient(f.Endpoint, f.Model, f.MaxTokens)
}

// GetEmbedder returns the configured embedder, wrapped in a cache when one
// is available.
func (f *AIFlags) GetEmbedder(c cache.Cache) embedding.Embedder {
	var embedder embedding.Embedder
	if f.LocalEmbeddings {
		embedder = embedding.NewLocalEmbedder(f.EmbeddingDimension)
	} else {
		embedder = embedding.NewOpenAIEmbedder(f.Endpoint, f.EmbeddingModel, f.EmbeddingDimension)
	}
	if c != nil {
		return embedding.NewCachedEmbedder(embedder, c)
	}
	return embedder
}
