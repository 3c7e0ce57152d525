// Package memory is a brute-force cosine similarity store. Vectors are
// assumed L2-normalized so similarity is a dot product.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"

	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

type Store struct {
	mu      sync.RWMutex
	chunks  []vectorstore.Chunk
	vectors [][]float64
	seen    map[string]bool
}

func NewStore() *Store {
	return &Store{seen: map[string]bool{}}
}

func (s *Store) Upsert(_ context.Context, chunks []vectorstore.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		if s.seen[chunks[i].ID] {
			continue
		}
		s.seen[chunks[i].ID] = true
		s.chunks = append(s.chunks, chunks[i])
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Store) Search(_ context.Context, vector []float64, k int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 5
	}

	idxs := make([]int, len(s.vectors))
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		idxs[i] = i
		scores[i] = dot(s.vectors[i], vector)
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]vectorstore.SearchResult, 0, k)
	for i := 0; i < k; i++ {
		j := idxs[i]
		results = append(results, vectorstore.SearchResult{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results, nil
}

// KeywordSearch scores chunks by the fraction of query tokens found in
// their text. Short tokens carry no signal and are ignored.
func (s *Store) KeywordSearch(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	tokens := keywordTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var idxs []int
	scores := make(map[int]float64)
	for i := range s.chunks {
		text := strings.ToLower(s.chunks[i].Text)
		hits := 0
		for _, token := range tokens {
			if strings.Contains(text, token) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		idxs = append(idxs, i)
		scores[i] = float64(hits) / float64(len(tokens))
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return scores[idxs[a]] > scores[idxs[b]]
	})

	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]vectorstore.SearchResult, 0, k)
	for _, i := range idxs[:k] {
		results = append(results, vectorstore.SearchResult{Chunk: s.chunks[i], Score: scores[i]})
	}
	return results, nil
}

func keywordTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var tokens []string
	seen := map[string]bool{}
	for _, field := range fields {
		if len(field) < 3 || seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}
	return tokens
}

func (s *Store) Rebuild(_ context.Context, chunks []vectorstore.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}

	// Build the replacement off to the side, then swap under the write
	// lock. Readers see the old index entirely or the new one entirely.
	newChunks := make([]vectorstore.Chunk, 0, len(chunks))
	newVectors := make([][]float64, 0, len(vectors))
	seen := make(map[string]bool, len(chunks))
	for i := range chunks {
		if seen[chunks[i].ID] {
			continue
		}
		seen[chunks[i].ID] = true
		newChunks = append(newChunks, chunks[i])
		newVectors = append(newVectors, vectors[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = newChunks
	s.vectors = newVectors
	s.seen = seen
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

type snapshot struct {
	Chunks  []vectorstore.Chunk `json:"chunks"`
	Vectors [][]float64         `json:"vectors"`
}

// Save writes the index to a JSON snapshot file.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{Chunks: s.chunks, Vectors: s.vectors}
	s.mu.RUnlock()

	content, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding index snapshot")
	}
	return errors.Wrap(os.WriteFile(path, content, 0o644), "writing index snapshot")
}

// Load replaces the index with a snapshot previously written by Save.
func (s *Store) Load(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading index snapshot")
	}
	var snap snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return errors.Wrap(err, "decoding index snapshot")
	}
	return s.Rebuild(context.Background(), snap.Chunks, snap.Vectors)
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
