package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

// Redis stores entries under prefix in a shared redis instance.
type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedis(log *logger.Logger, rdb goredis.UniversalClient, prefix string) (*Redis, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{log: log.With("service", "RedisCache"), rdb: rdb, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		r.log.Warn("cache get failed", "key", key, "error", err)
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		r.log.Warn("cache set failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

// Clear removes every key under the prefix using SCAN.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			r.log.Warn("cache delete failed", "key", iter.Val(), "error", err)
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	r.log.Debug("cache cleared", "deleted", deleted)
	return nil
}
