package keystore

import (
	"context"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// Cached is a read-through decorator over another resolver. Only
	// positive answers are cached: a miss or a backend error always falls
	// through, so a key added to the backend is usable immediately and a
	// revoked key lingers at most one TTL.
	Cached struct {
		next  Resolver
		cache *bigcache.BigCache
	}
)

// NewCached wraps next with an in-memory cache whose entries expire after
// ttl.
func NewCached(next Resolver, ttl time.Duration) (*Cached, error) {
	cache, err := bigcache.NewBigCache(bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) ResolveSecret(ctx context.Context, apiKey string) (string, bool, error) {
	if secret, err := c.cache.Get(apiKey); err == nil {
		return string(secret), true, nil
	}
	secret, found, err := c.next.ResolveSecret(ctx, apiKey)
	if err != nil || !found {
		return "", found, err
	}
	c.cache.Set(apiKey, []byte(secret))
	return secret, true, nil
}

// Forget drops one key from the cache, e.g. right after revoking it in the
// backend.
func (c *Cached) Forget(apiKey string) {
	c.cache.Delete(apiKey)
}

func (c *Cached) Close() error {
	return c.cache.Close()
}
