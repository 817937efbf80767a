package cache

import (
	"context"
	"time"
)

// LayeredCache keeps a bounded in-memory copy in front of a shared backend.
// Writes go to the backend first; locks and existence checks are answered by
// the backend only.
type LayeredCache struct {
	mem     *MemoryCache
	backend Service
	l1TTL   time.Duration
}

func NewLayeredCache(backend Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		mem:     NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		backend: backend,
		l1TTL:   cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.backend.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, data, lc.memTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	if err := lc.mem.Get(ctx, key, &data); err == nil {
		return decode(data, dest)
	}
	if err := lc.backend.Get(ctx, key, &data); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, data, lc.l1TTL)
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.backend.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.backend.Exists(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.backend.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.backend.Unlock(ctx, key)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.backend.Close()
}

func (lc *LayeredCache) memTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}
