package flags

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/redclouds/erp-assistant/pkg/apis/cache"
	"github.com/redclouds/erp-assistant/pkg/cache/redis"
)

// CacheFlags holds caching configuration. An empty URL disables caching.
type CacheFlags struct {
	RedisURL string
}

func NewCacheFlags() *CacheFlags {
	return &CacheFlags{
		RedisURL: os.Getenv("REDIS_URL"),
	}
}

func (f *CacheFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.RedisURL, "redis-url", f.RedisURL, "Redis URL for the embedding cache, e.g. redis://localhost:6379")
}

func (f *CacheFlags) GetCacheClient() (cache.Cache, error) {
	if f.RedisURL == "" {
		return nil, nil
	}
	return redis.NewRedisCache(f.RedisURL)
}
