// Package qdrant is a minimal REST client for a Qdrant collection using
// cosine distance.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

// Point ids must be UUIDs or integers, so chunk content hashes are mapped
// through a fixed namespace. The mapping is deterministic, which keeps
// re-ingestion idempotent on the Qdrant side too.
var pointNamespace = uuid.MustParse("9b1f6d3e-7a65-4a87-9f60-3f7f2a1f0cde")

type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil)
}

func (s *Store) Upsert(ctx context.Context, chunks []vectorstore.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(chunks[i].ID)).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id":    chunks[i].ID,
				"document_id": chunks[i].DocumentID,
				"location":    chunks[i].Location,
				"text":        chunks[i].Text,
				"metadata":    chunks[i].Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil)
}

func (s *Store) Search(ctx context.Context, vector []float64, k int) ([]vectorstore.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.collection), body, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]vectorstore.SearchResult, 0, len(resp.Result))
	for _, hit := range resp.Result {
		results = append(results, vectorstore.SearchResult{
			Chunk: chunkFromPayload(hit.Payload),
			Score: hit.Score,
		})
	}
	return results, nil
}

// Rebuild drops and recreates the collection, then loads the new content.
// Qdrant's collection recreation gives readers a consistent view.
func (s *Store) Rebuild(ctx context.Context, chunks []vectorstore.Chunk, vectors [][]float64) error {
	if err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", s.collection), nil, nil); err != nil {
		return err
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	return s.Upsert(ctx, chunks, vectors)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", s.collection), nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.PointsCount, nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding qdrant request")
		}
		reader = bytes.NewReader(content)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return errors.Wrap(err, "building qdrant request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling qdrant")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("qdrant %s %s: %s: %s", method, path, resp.Status, string(payload))
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding qdrant response")
}

func chunkFromPayload(payload map[string]any) vectorstore.Chunk {
	chunk := vectorstore.Chunk{
		ID:         stringField(payload, "chunk_id"),
		DocumentID: stringField(payload, "document_id"),
		Location:   stringField(payload, "location"),
		Text:       stringField(payload, "text"),
	}
	if meta, ok := payload["metadata"].(map[string]any); ok {
		chunk.Metadata = map[string]string{}
		for k, v := range meta {
			if s, ok := v.(string); ok {
				chunk.Metadata[k] = s
			}
		}
	}
	return chunk
}

func stringField(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}
