package rag

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/redclouds/erp-assistant/pkg/embedding"
	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

// ErrRetrievalTimeout marks a retrieval that ran out of time. Callers treat
// it as "no relevant context found" and carry on.
var ErrRetrievalTimeout = errors.New("retrieval timed out")

// Retriever embeds the question and queries the vector index, discarding
// matches below the similarity floor.
type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	minScore float64
	timeout  time.Duration
}

func NewRetriever(embedder embedding.Embedder, store vectorstore.Store, minScore float64, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Retriever{embedder: embedder, store: store, minScore: minScore, timeout: timeout}
}

// Retrieve returns up to k chunks ordered by descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]vectorstore.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRetrievalTimeout
		}
		return nil, errors.Wrap(err, "embedding question")
	}

	results, err := r.store.Search(ctx, vector, k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRetrievalTimeout
		}
		return nil, errors.Wrap(err, "querying vector index")
	}

	kept := results[:0]
	for _, result := range results {
		if result.Score < r.minScore {
			log.WithFields(log.Fields{
				"chunk": result.Chunk.ID,
				"score": result.Score,
			}).Debug("dropping low-similarity chunk")
			continue
		}
		kept = append(kept, result)
	}

	// Vector similarity found nothing usable. Before giving up, let stores
	// that support it score the corpus by plain token overlap: exact ERP
	// terminology often matches even when the embedding doesn't.
	if len(kept) == 0 {
		if searcher, ok := r.store.(vectorstore.KeywordSearcher); ok {
			log.Debug("no vector matches above the floor, trying keyword search")
			matches, err := searcher.KeywordSearch(ctx, question, k)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return nil, ErrRetrievalTimeout
				}
				return nil, errors.Wrap(err, "keyword search")
			}
			return matches, nil
		}
	}
	return kept, nil
}
