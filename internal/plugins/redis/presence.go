package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
)

// redisClient is the subset of go-redis the mirror needs.
type redisClient interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisPresenceMirror keeps a sorted set of online user ids, scored by the
// unix time the connection was established, for consumers outside this
// process. Each sync replaces the whole set atomically.
type RedisPresenceMirror struct {
	client redisClient
	key    string
}

func NewRedisPresenceMirror(client redisClient, key string) (*RedisPresenceMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if key == "" {
		key = "presence:online"
	}
	return &RedisPresenceMirror{client: client, key: key}, nil
}

var _ contracts.PresenceMirror = (*RedisPresenceMirror)(nil)

func (p *RedisPresenceMirror) SyncOnline(ctx context.Context, conns []contracts.Connection) error {
	members := make([]redis.Z, 0, len(conns))
	for _, c := range conns {
		members = append(members, redis.Z{
			Score:  float64(c.EstablishedAt.Unix()),
			Member: c.UserID,
		})
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, p.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync presence set %q: %w", p.key, err)
	}
	return nil
}

// Clear removes the mirrored set, used on shutdown.
func (p *RedisPresenceMirror) Clear(ctx context.Context) error {
	return p.client.Del(ctx, p.key).Err()
}
