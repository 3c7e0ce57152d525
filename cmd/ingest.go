package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/redclouds/erp-assistant/pkg/flags"
	"github.com/redclouds/erp-assistant/pkg/ingest"
	"github.com/redclouds/erp-assistant/pkg/vectorstore/qdrant"
)

type IngestFlags struct {
	AIFlags     *flags.AIFlags
	CacheFlags  *flags.CacheFlags
	VectorFlags *flags.VectorFlags
	CorpusFlags *flags.CorpusFlags
	Rebuild     bool
}

func NewIngestFlags() *IngestFlags {
	return &IngestFlags{
		AIFlags:     flags.NewAIFlags(),
		CacheFlags:  flags.NewCacheFlags(),
		VectorFlags: flags.NewVectorFlags(),
		CorpusFlags: flags.NewCorpusFlags(),
	}
}

func (f *IngestFlags) BindFlags(fs *pflag.FlagSet) {
	f.AIFlags.BindFlags(fs)
	f.CacheFlags.BindFlags(fs)
	f.VectorFlags.BindFlags(fs)
	f.CorpusFlags.BindFlags(fs)
	fs.BoolVar(&f.Rebuild, "rebuild", f.Rebuild, "Replace the whole index instead of adding to it")
}

func init() {
	f := NewIngestFlags()

	cmd := &cobra.Command{
		Use:   "ingest [corpus-dir...]",
		Short: "Chunk and index source documents",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			cfg, err := f.CorpusFlags.GetConfig()
			if err != nil {
				log.WithError(err).Fatal("could not load corpus config")
			}
			paths := append(append([]string{}, cfg.Corpus.Paths...), args...)
			if len(paths) == 0 {
				log.Fatal("no corpus paths given, pass directories as arguments or set corpus.paths in --config")
			}

			var docs []ingest.Document
			for _, dir := range paths {
				loaded, err := ingest.LoadDir(dir)
				if err != nil {
					log.WithError(err).Fatalf("could not load corpus dir %s", dir)
				}
				docs = append(docs, loaded...)
			}

			cacheClient, err := f.CacheFlags.GetCacheClient()
			if err != nil {
				log.WithError(err).Fatal("could not connect to cache")
			}

			store, err := f.VectorFlags.GetVectorStore(f.AIFlags.EmbeddingDimension)
			if err != nil {
				log.WithError(err).Fatal("could not open vector index")
			}
			if qs, ok := store.(*qdrant.Store); ok && !f.Rebuild {
				if err := qs.Init(ctx); err != nil {
					log.WithError(err).Fatal("could not initialize qdrant collection")
				}
			}

			chunker := ingest.NewChunker(cfg.Chunking.TargetSize, cfg.Chunking.Overlap)
			embedder := f.AIFlags.GetEmbedder(cacheClient)
			ingestor := ingest.NewIngestor(chunker, embedder, store)

			var summary *ingest.Summary
			if f.Rebuild {
				summary, err = ingestor.RunRebuild(ctx, docs)
			} else {
				summary, err = ingestor.Run(ctx, docs)
			}
			if err != nil {
				log.WithError(err).Fatal("ingestion failed")
			}

			if err := f.VectorFlags.SaveSnapshot(store); err != nil {
				log.WithError(err).Fatal("could not save index snapshot")
			}

			fmt.Printf("ingested %d documents (%d skipped), index now holds %d chunks\n",
				summary.Documents, summary.Skipped, summary.Chunks)
		},
	}

	f.BindFlags(cmd.Flags())
	rootCmd.AddCommand(cmd)
}
