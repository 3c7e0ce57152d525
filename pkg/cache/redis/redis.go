// Package redis backs the byte cache with a redis server. Embedding vectors
// dominate the keyspace, so entries are small and short-lived.
package redis

import (
	"time"

	"github.com/pkg/errors"
	r "gopkg.in/redis.v5"
)

const prefix = "_RCASSIST_"

// ErrMiss is returned when a key is absent. Callers treat it like any other
// cache failure: recompute and move on.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	client *r.Client
}

// NewRedisCache connects and pings the server so a bad REDIS_URL fails at
// startup rather than on the first turn.
func NewRedisCache(url string) (*Cache, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}

	client := r.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Get(key string) ([]byte, error) {
	content, err := c.client.Get(prefix + key).Bytes()
	if err == r.Nil {
		return nil, ErrMiss
	}
	return content, err
}

func (c *Cache) Set(key string, content []byte, duration time.Duration) error {
	return c.client.Set(prefix+key, content, duration).Err()
}
