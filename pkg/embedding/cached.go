package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/redclouds/erp-assistant/pkg/apis/cache"
)

const cacheTTL = 24 * time.Hour

// CachedEmbedder memoizes vectors through a cache.Cache, keyed by embedder
// name and content hash. Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
}

func NewCachedEmbedder(inner Embedder, c cache.Cache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c}
}

func (e *CachedEmbedder) Name() string { return e.inner.Name() }

func (e *CachedEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := e.cacheKey(text)

	if content, err := e.cache.Get(key); err == nil {
		var vector []float64
		if err := json.Unmarshal(content, &vector); err == nil {
			return vector, nil
		}
		log.WithField("key", key).Warn("discarding undecodable cached embedding")
	}

	vector, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if content, err := json.Marshal(vector); err == nil {
		if err := e.cache.Set(key, content, cacheTTL); err != nil {
			log.WithError(err).Warn("could not cache embedding")
		}
	}
	return vector, nil
}

func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding~" + e.inner.Name() + "~" + hex.EncodeToString(sum[:])
}
