package cachestore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// In-process cache with a fixed capacity and TTL. Entries past capacity are evicted least-recently-used first.
type MemCacheStore struct {
	Data    *expirable.LRU[string, string]
	evicted atomic.Int64
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	s := &MemCacheStore{}
	s.Data = expirable.NewLRU[string, string](capacity, func(string, string) {
		s.evicted.Add(1)
	}, ttl)
	return s
}

func memCacheKey(name, key string) string {
	return name + "/" + key
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.Data.Get(memCacheKey(name, key))
	if !ok {
		return "", nil
	}
	return v, nil
}

// An empty value reads back the same as a miss, so storing one just drops the entry.
func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	if val == "" {
		return s.Purge(ctx, name, key)
	}
	s.Data.Add(memCacheKey(name, key), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(memCacheKey(name, key))
	return nil
}

// Number of entries dropped for capacity, expiry, or purge since creation.
func (s *MemCacheStore) Evicted() int64 {
	return s.evicted.Load()
}
