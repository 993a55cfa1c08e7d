package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Riyakuila/Chat-Flow/internal/config"
)

// clientName tags the connections in CLIENT LIST so the presence mirror's
// pool is easy to tell apart on a shared Redis.
const clientName = "chat-flow-presence"

// NewRedisClient dials the Redis that backs the presence mirror and checks
// it answers within PingTimeout. An empty URL means the mirror is disabled
// and callers should not build a client at all.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is empty, presence mirror disabled")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ClientName = clientName
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
