package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	embedder := NewLocalEmbedder(64)

	first, err := embedder.Embed(ctx, "Refunds must be requested within 30 days.")
	require.NoError(t, err)
	second, err := embedder.Embed(ctx, "Refunds must be requested within 30 days.")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestLocalEmbedderNormalized(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "short text", text: "invoice"},
		{name: "sentence", text: "How do I export the general ledger to CSV?"},
		{name: "repeated tokens", text: "refund refund refund policy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vector, err := NewLocalEmbedder(128).Embed(context.Background(), tc.text)
			require.NoError(t, err)

			var norm float64
			for _, v := range vector {
				norm += v * v
			}
			assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
		})
	}
}

func TestLocalEmbedderSimilarTextScoresHigher(t *testing.T) {
	ctx := context.Background()
	embedder := NewLocalEmbedder(256)

	query, err := embedder.Embed(ctx, "when must refunds be requested")
	require.NoError(t, err)
	related, err := embedder.Embed(ctx, "Refunds must be requested within 30 days.")
	require.NoError(t, err)
	unrelated, err := embedder.Embed(ctx, "The payroll module supports weekly and monthly runs.")
	require.NoError(t, err)

	assert.Greater(t, dot(query, related), dot(query, unrelated))
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	vector, err := NewLocalEmbedder(32).Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vector, 32)
	for _, v := range vector {
		assert.Zero(t, v)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
