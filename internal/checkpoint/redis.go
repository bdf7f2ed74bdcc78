package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the checkpoint under Key, optionally namespaced by prefix, in
// a Redis instance shared by the client's processes.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(rdb, prefix), nil
}

func NewRedisWithClient(rdb *redis.Client, prefix string) *Redis {
	key := Key
	if prefix != "" {
		key = prefix + ":" + Key
	}
	return &Redis{client: rdb, key: key}
}

func (r *Redis) Load(ctx context.Context) (time.Time, bool, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	t, err := decode(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (r *Redis) Save(ctx context.Context, t time.Time) error {
	if err := r.client.Set(ctx, r.key, encode(t), 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
