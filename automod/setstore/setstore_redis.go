package setstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisSetPrefix string = "set/"

// Sets shared between nodes, kept as redis sets. Values are written lower-cased.
type RedisSetStore struct {
	Client *redis.Client
}

var _ SetStore = (*RedisSetStore)(nil)

func NewRedisSetStore(redisURL string) (*RedisSetStore, error) {
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
	return &RedisSetStore{Client: rdb}, nil
}

func (s *RedisSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	return s.Client.SIsMember(ctx, redisSetPrefix+name, normalize(val)).Result()
}

// Replaces the named set in a single transaction.
func (s *RedisSetStore) Put(ctx context.Context, name string, vals []string) error {
	key := redisSetPrefix + name
	multi := s.Client.TxPipeline()
	multi.Del(ctx, key)
	if len(vals) > 0 {
		members := make([]any, len(vals))
		for i, v := range vals {
			members[i] = normalize(v)
		}
		multi.SAdd(ctx, key, members...)
	}
	_, err := multi.Exec(ctx)
	return err
}
