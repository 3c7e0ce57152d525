// Package vectorstore defines the chunk index contract shared by the
// in-memory and Qdrant implementations.
package vectorstore

import "context"

// Chunk is the unit of indexing and retrieval. ID is the hex hash of the
// chunk's normalized text, so re-ingesting unchanged content produces the
// same ids and the index never grows on a no-op ingest.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Location   string            `json:"location"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchResult is a matching chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// KeywordSearcher is an optional extension: stores that can score chunks by
// token overlap expose it, and retrieval falls back to it when vector
// similarity finds nothing above the floor.
type KeywordSearcher interface {
	// KeywordSearch returns up to k results ordered by descending token
	// overlap with the query; chunks sharing no token are omitted.
	KeywordSearch(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// Store persists chunk vectors and answers similarity queries. Reads from
// independent conversations must not block each other; Rebuild replaces the
// whole index so concurrent readers see either the old index or the new one,
// never a mix.
type Store interface {
	// Upsert adds chunks, skipping ids already present.
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error

	// Search returns up to k results ordered by score descending; ties
	// keep chunk insertion order.
	Search(ctx context.Context, vector []float64, k int) ([]SearchResult, error)

	// Rebuild atomically replaces the index content.
	Rebuild(ctx context.Context, chunks []Chunk, vectors [][]float64) error

	// Count reports the number of indexed chunks.
	Count(ctx context.Context) (int, error)
}
