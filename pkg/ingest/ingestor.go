// Package ingest loads source documents, chunks them and populates the
// vector index. A malformed document is skipped and logged, never fatal to
// the rest of the corpus.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/redclouds/erp-assistant/pkg/embedding"
	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

// Document is one raw source text prior to chunking.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Summary reports what an ingestion run did.
type Summary struct {
	Documents int
	Skipped   int
	Chunks    int
	Deduped   int
}

type Ingestor struct {
	chunker  *Chunker
	embedder embedding.Embedder
	store    vectorstore.Store
}

func NewIngestor(chunker *Chunker, embedder embedding.Embedder, store vectorstore.Store) *Ingestor {
	return &Ingestor{chunker: chunker, embedder: embedder, store: store}
}

// Run chunks and indexes the documents. Chunk ids are content hashes and the
// store skips known ids, so re-running over unchanged input leaves the index
// count unchanged.
func (i *Ingestor) Run(ctx context.Context, docs []Document) (*Summary, error) {
	summary, chunks, vectors, err := i.prepare(ctx, docs)
	if err != nil {
		return nil, err
	}
	if err := i.store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, errors.Wrap(err, "indexing chunks")
	}
	return i.finish(ctx, summary)
}

// RunRebuild replaces the whole index with the given documents. Readers see
// the old index until the swap completes.
func (i *Ingestor) RunRebuild(ctx context.Context, docs []Document) (*Summary, error) {
	summary, chunks, vectors, err := i.prepare(ctx, docs)
	if err != nil {
		return nil, err
	}
	if err := i.store.Rebuild(ctx, chunks, vectors); err != nil {
		return nil, errors.Wrap(err, "rebuilding index")
	}
	return i.finish(ctx, summary)
}

func (i *Ingestor) prepare(ctx context.Context, docs []Document) (*Summary, []vectorstore.Chunk, [][]float64, error) {
	summary := &Summary{}
	seen := map[string]bool{}
	var chunks []vectorstore.Chunk

	for _, doc := range docs {
		if err := validate(doc); err != nil {
			log.WithError(err).WithField("document", doc.ID).Warn("skipping malformed document")
			summary.Skipped++
			continue
		}
		summary.Documents++
		for _, chunk := range i.chunker.Chunk(doc) {
			if seen[chunk.ID] {
				summary.Deduped++
				continue
			}
			seen[chunk.ID] = true
			chunks = append(chunks, chunk)
		}
	}

	vectors := make([][]float64, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := i.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "embedding chunk %s", chunk.ID)
		}
		vectors = append(vectors, vector)
	}
	return summary, chunks, vectors, nil
}

func (i *Ingestor) finish(ctx context.Context, summary *Summary) (*Summary, error) {
	count, err := i.store.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting indexed chunks")
	}
	summary.Chunks = count

	log.WithFields(log.Fields{
		"documents": summary.Documents,
		"skipped":   summary.Skipped,
		"indexed":   summary.Chunks,
	}).Info("ingestion complete")
	return summary, nil
}

func validate(doc Document) error {
	if doc.ID == "" {
		return errors.New("document has no id")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return errors.New("document is empty")
	}
	if !utf8.ValidString(doc.Text) {
		return errors.New("document is not valid UTF-8")
	}
	return nil
}

// LoadDir reads every .txt and .md file under dir as one document, keyed by
// its path relative to dir.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unreadable document")
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, Document{
			ID:   rel,
			Text: string(content),
			Metadata: map[string]string{
				"source": rel,
			},
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking corpus dir %s", dir)
	}
	return docs, nil
}
