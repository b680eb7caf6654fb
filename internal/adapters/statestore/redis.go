// Package statestore mirrors session state into a shared hash store so
// peers and restarts can observe it. The mirror is advisory: callers
// must keep working when the backing service is gone, which is what the
// Fallback wrapper is for.
package statestore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis backs the state store with Redis hashes, one hash per session key.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Write(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *Redis) ReadAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *Redis) DeleteFields(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HDel(ctx, key, fields...).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}
