package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucket key lifetimes; the total bucket never expires
var redisPeriodTTL = map[string]time.Duration{
	PeriodHour: 2 * time.Hour,
	PeriodDay:  48 * time.Hour,
}

// Counters kept in redis, so warning points survive restarts and are shared between servers.
type RedisCountStore struct {
	Client *redis.Client
	// key prefix; defaults to "chatmod/count/"
	Prefix string
	// defaults to time.Now
	Clock func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return NewRedisCountStoreClient(rdb), nil
}

// Wraps an existing client, eg one shared with the other redis stores.
func NewRedisCountStoreClient(rdb *redis.Client) *RedisCountStore {
	return &RedisCountStore{
		Client: rdb,
		Prefix: "chatmod/count/",
		Clock:  time.Now,
	}
}

func (s *RedisCountStore) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *RedisCountStore) key(name, val, period string, now time.Time) string {
	return s.Prefix + periodBucket(name, val, period, now)
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	c, err := s.Client.Get(ctx, s.key(name, val, period, s.now())).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	return s.IncrementBy(ctx, name, val, 1)
}

func (s *RedisCountStore) IncrementBy(ctx context.Context, name, val string, n int) error {
	now := s.now()

	// every period bucket in a single round-trip
	multi := s.Client.TxPipeline()
	for _, period := range allPeriods {
		key := s.key(name, val, period, now)
		multi.IncrBy(ctx, key, int64(n))
		if ttl, ok := redisPeriodTTL[period]; ok {
			multi.Expire(ctx, key, ttl)
		}
	}
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) Reset(ctx context.Context, name, val string) error {
	now := s.now()
	keys := make([]string, 0, len(allPeriods))
	for _, p := range allPeriods {
		keys = append(keys, s.key(name, val, p, now))
	}
	return s.Client.Del(ctx, keys...).Err()
}
