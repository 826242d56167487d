package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"rentchat/tools/errs"
)

// RedisConfig initialises the client shared by the cache and presence.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedis dials and pings; the caller owns Close.
func NewRedis(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "ping redis", "addr", c.Addr)
	}
	return rdb, nil
}
