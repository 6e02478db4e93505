package flagstore

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisFlagPrefix string = "flags/"

// Flags kept as redis sets, so several nodes share "already fired" state. Each write refreshes the key's TTL.
type RedisFlagStore struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ FlagStore = (*RedisFlagStore)(nil)

func NewRedisFlagStore(redisURL string) (*RedisFlagStore, error) {
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
	return &RedisFlagStore{
		Client: rdb,
		TTL:    24 * time.Hour,
	}, nil
}

func (s *RedisFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	l, err := s.Client.SMembers(ctx, redisFlagPrefix+key).Result()
	if err == redis.Nil {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	sort.Strings(l)
	return l, nil
}

func (s *RedisFlagStore) Has(ctx context.Context, key, flag string) (bool, error) {
	return s.Client.SIsMember(ctx, redisFlagPrefix+key, flag).Result()
}

func (s *RedisFlagStore) Add(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	vals := make([]any, len(flags))
	for i, f := range flags {
		vals[i] = f
	}
	multi := s.Client.Pipeline()
	multi.SAdd(ctx, redisFlagPrefix+key, vals...)
	if s.TTL > 0 {
		multi.Expire(ctx, redisFlagPrefix+key, s.TTL)
	}
	_, err := multi.Exec(ctx)
	return err
}

// SADD reports how many members were new, which makes it the test-and-set.
func (s *RedisFlagStore) TryAdd(ctx context.Context, key, flag string) (bool, error) {
	multi := s.Client.TxPipeline()
	added := multi.SAdd(ctx, redisFlagPrefix+key, flag)
	if s.TTL > 0 {
		multi.Expire(ctx, redisFlagPrefix+key, s.TTL)
	}
	if _, err := multi.Exec(ctx); err != nil {
		return false, err
	}
	return added.Val() == 1, nil
}

// does not error if flags not in set
func (s *RedisFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	vals := make([]any, len(flags))
	for i, f := range flags {
		vals[i] = f
	}
	return s.Client.SRem(ctx, redisFlagPrefix+key, vals...).Err()
}
