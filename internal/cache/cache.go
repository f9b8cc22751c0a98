// Package cache is the short-TTL memoization layer in front of balance,
// summary and price reads. Entries are best-effort: writers invalidate on
// commit and anything missed expires with its TTL.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a byte-valued key/value store with per-entry TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func BalancesKey(userID string) string { return "balances:" + userID }
func SummaryKey(userID string) string  { return "summary:" + userID }
func PriceKey(asset string) string     { return "price:" + asset }

// MemoryCache is a process-local Cache on ttlcache. Expired entries are
// never returned; Start runs the background eviction loop that removes them.
type MemoryCache struct {
	items *ttlcache.Cache[string, []byte]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		// reads must not extend an entry past the TTL its writer chose
		items: ttlcache.New[string, []byte](ttlcache.WithDisableTouchOnHit[string, []byte]()),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	v := item.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (c *MemoryCache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.items.Set(key, v, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.items.Delete(k)
	}
	return nil
}

// Start evicts expired entries as they expire. It blocks until Stop.
func (c *MemoryCache) Start() { c.items.Start() }

// Stop ends a running Start loop
func (c *MemoryCache) Stop() { c.items.Stop() }

// DeleteExpired removes every expired entry now
func (c *MemoryCache) DeleteExpired() { c.items.DeleteExpired() }

// Len returns the number of stored entries, expired ones not yet evicted included
func (c *MemoryCache) Len() int { return c.items.Len() }
