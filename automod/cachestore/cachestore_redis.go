package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Cache backed by redis, shared between every engine pointed at the same database.
//
// Values may additionally be held in a small per-process LFU cache. A purge only reaches the local cache of the process which ran it, so the local cache is off unless LocalSize is set.
type RedisCacheStore struct {
	Data   *cache.Cache
	TTL    time.Duration
	Prefix string
}

var _ CacheStore = (*RedisCacheStore)(nil)

type RedisCacheOptions struct {
	TTL time.Duration
	// key prefix; defaults to "chatmod/cache/"
	Prefix string
	// entries kept in process memory; 0 disables the local cache
	LocalSize int
}

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return NewRedisCacheStoreClient(rdb, RedisCacheOptions{TTL: ttl}), nil
}

// Wraps an existing client, eg one shared with the other redis stores.
func NewRedisCacheStoreClient(rdb *redis.Client, opts RedisCacheOptions) *RedisCacheStore {
	if opts.Prefix == "" {
		opts.Prefix = "chatmod/cache/"
	}
	copts := &cache.Options{Redis: rdb}
	if opts.LocalSize > 0 {
		copts.LocalCache = cache.NewTinyLFU(opts.LocalSize, opts.TTL)
	}
	return &RedisCacheStore{
		Data:   cache.New(copts),
		TTL:    opts.TTL,
		Prefix: opts.Prefix,
	}
}

func (s *RedisCacheStore) key(name, key string) string {
	return s.Prefix + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.Data.Get(ctx, s.key(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	if val == "" {
		return s.Purge(ctx, name, key)
	}
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   s.key(name, key),
		Value: val,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, s.key(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
