package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redclouds/erp-assistant/pkg/embedding"
	"github.com/redclouds/erp-assistant/pkg/vectorstore/memory"
)

func newTestIngestor() (*Ingestor, *memory.Store) {
	store := memory.NewStore()
	return NewIngestor(NewChunker(800, 200), embedding.NewLocalEmbedder(64), store), store
}

func TestIngestRunIdempotent(t *testing.T) {
	ctx := context.Background()
	ingestor, store := newTestIngestor()

	docs := []Document{
		{ID: "refunds.md", Text: "Refunds must be requested within 30 days."},
		{ID: "payroll.md", Text: "The payroll module supports weekly and monthly runs."},
	}

	summary, err := ingestor.Run(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)
	assert.Zero(t, summary.Skipped)

	count, err := store.Count(ctx)
	require.NoError(t, err)

	// Unchanged input must not grow the index.
	again, err := ingestor.Run(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, count, again.Chunks)

	after, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, after)
}

func TestIngestSkipsMalformedDocuments(t *testing.T) {
	ctx := context.Background()
	ingestor, _ := newTestIngestor()

	summary, err := ingestor.Run(ctx, []Document{
		{ID: "good.md", Text: "Stock takes freeze item movements."},
		{ID: "empty.md", Text: "   "},
		{ID: "", Text: "has no id"},
		{ID: "binary.md", Text: "bad utf8 \xff\xfe"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Chunks)
}

func TestIngestDedupesRepeatedChunks(t *testing.T) {
	ctx := context.Background()
	ingestor, _ := newTestIngestor()

	summary, err := ingestor.Run(ctx, []Document{
		{ID: "a.md", Text: "Refunds must be requested within 30 days."},
		{ID: "b.md", Text: "Refunds must be requested within 30 days."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 1, summary.Deduped)
	assert.Equal(t, 1, summary.Chunks)
}

func TestRunRebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	ingestor, store := newTestIngestor()

	_, err := ingestor.Run(ctx, []Document{{ID: "old.md", Text: "Old pricing guidance."}})
	require.NoError(t, err)

	summary, err := ingestor.RunRebuild(ctx, []Document{{ID: "new.md", Text: "New pricing guidance."}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Chunks)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "refunds.md"), []byte("Refunds must be requested within 30 days."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Quarterly close checklist."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "vat.md"), []byte("VAT rates per region."), 0o644))

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	ids := map[string]bool{}
	for _, doc := range docs {
		ids[doc.ID] = true
		assert.Equal(t, doc.ID, doc.Metadata["source"])
	}
	assert.True(t, ids["refunds.md"])
	assert.True(t, ids["notes.txt"])
	assert.True(t, ids[filepath.Join("sub", "vat.md")])
}
