package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	entries map[string][]byte
	failing bool
	gets    int
	sets    int
}

func (c *fakeCache) Get(key string) ([]byte, error) {
	c.gets++
	if c.failing {
		return nil, errors.New("cache unavailable")
	}
	content, ok := c.entries[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return content, nil
}

func (c *fakeCache) Set(key string, content []byte, _ time.Duration) error {
	c.sets++
	if c.failing {
		return errors.New("cache unavailable")
	}
	c.entries[key] = content
	return nil
}

type countingEmbedder struct {
	inner Embedder
	calls int
}

func (e *countingEmbedder) Name() string    { return e.inner.Name() }
func (e *countingEmbedder) Dimension() int  { return e.inner.Dimension() }
func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	return e.inner.Embed(ctx, text)
}

func TestCachedEmbedderMemoizes(t *testing.T) {
	ctx := context.Background()
	counting := &countingEmbedder{inner: NewLocalEmbedder(32)}
	fc := &fakeCache{entries: map[string][]byte{}}
	cached := NewCachedEmbedder(counting, fc)

	first, err := cached.Embed(ctx, "purchase order approval workflow")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "purchase order approval workflow")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, 1, fc.sets)
}

func TestCachedEmbedderTreatsFailureAsMiss(t *testing.T) {
	ctx := context.Background()
	counting := &countingEmbedder{inner: NewLocalEmbedder(32)}
	cached := NewCachedEmbedder(counting, &fakeCache{failing: true})

	for i := 0; i < 2; i++ {
		vector, err := cached.Embed(ctx, "stock take procedure")
		require.NoError(t, err)
		assert.Len(t, vector, 32)
	}
	assert.Equal(t, 2, counting.calls)
}
