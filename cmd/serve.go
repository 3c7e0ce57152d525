package cmd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/redclouds/erp-assistant/pkg/chatserver"
	"github.com/redclouds/erp-assistant/pkg/chatserver/metrics"
	"github.com/redclouds/erp-assistant/pkg/conversation"
	"github.com/redclouds/erp-assistant/pkg/flags"
	"github.com/redclouds/erp-assistant/pkg/rag"
)

type ServerFlags struct {
	DBFlags     *flags.PostgresFlags
	AIFlags     *flags.AIFlags
	CacheFlags  *flags.CacheFlags
	VectorFlags *flags.VectorFlags
	CorpusFlags *flags.CorpusFlags
	ListenAddr  string
	MetricsAddr string
	MemoryStore bool
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		DBFlags:     flags.NewPostgresDatabaseFlags(),
		AIFlags:     flags.NewAIFlags(),
		CacheFlags:  flags.NewCacheFlags(),
		VectorFlags: flags.NewVectorFlags(),
		CorpusFlags: flags.NewCorpusFlags(),
		ListenAddr:  ":8080",
		MetricsAddr: ":2112",
	}
}

func (f *ServerFlags) BindFlags(fs *pflag.FlagSet) {
	f.DBFlags.BindFlags(fs)
	f.AIFlags.BindFlags(fs)
	f.CacheFlags.BindFlags(fs)
	f.VectorFlags.BindFlags(fs)
	f.CorpusFlags.BindFlags(fs)
	fs.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve the chat API on (default :8080)")
	fs.StringVar(&f.MetricsAddr, "listen-metrics", f.MetricsAddr, "The address to serve prometheus metrics on (default :2112)")
	fs.BoolVar(&f.MemoryStore, "memory-store", f.MemoryStore, "Keep conversations in memory instead of Postgres (single node only)")
}

func init() {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API",
		Run: func(cmd *cobra.Command, args []string) {
			var store conversation.Store
			if f.MemoryStore {
				store = conversation.NewMemoryStore()
			} else {
				dbc, err := f.DBFlags.GetDBClient()
				if err != nil {
					log.WithError(err).Fatal("could not connect to db")
				}
				if err := dbc.UpdateSchema(); err != nil {
					log.WithError(err).Fatal("could not migrate database schema")
				}
				store = conversation.NewDBStore(dbc)
			}

			cfg, err := f.CorpusFlags.GetConfig()
			if err != nil {
				log.WithError(err).Fatal("could not load corpus config")
			}

			cacheClient, err := f.CacheFlags.GetCacheClient()
			if err != nil {
				log.WithError(err).Fatal("could not connect to cache")
			}

			vectorStore, err := f.VectorFlags.GetVectorStore(f.AIFlags.EmbeddingDimension)
			if err != nil {
				log.WithError(err).Fatal("could not open vector index")
			}
			if count, err := vectorStore.Count(cmd.Context()); err == nil {
				if count == 0 {
					log.Warn("vector index is empty, run ingest before serving questions")
				}
				metrics.SetIndexedChunks(count)
			}

			embedder := f.AIFlags.GetEmbedder(cacheClient)
			retriever := rag.NewRetriever(embedder, vectorStore, cfg.Retrieval.MinScore, f.AIFlags.RetrievalTimeout)
			assembler := rag.NewAssembler(cfg.History.MaxTurns, cfg.History.MaxChars)
			generator := rag.NewGenerator(f.AIFlags.GetLLMClient(), f.AIFlags.GenerationTimeout)
			orchestrator := rag.NewOrchestrator(retriever, assembler, generator,
				rag.NewModelSuggestions(), store, cfg.Retrieval.TopK)

			// Serve our metrics endpoint for prometheus to scrape
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				err := http.ListenAndServe(f.MetricsAddr, nil) //nolint:gosec
				if err != nil {
					panic(err)
				}
			}()

			server := chatserver.NewServer(f.ListenAddr, orchestrator, store)
			server.Serve()
		},
	}

	f.BindFlags(cmd.Flags())
	rootCmd.AddCommand(cmd)
}
