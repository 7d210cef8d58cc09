package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "academy"

// Redis stores entries as JSON strings under academy:<namespace>:<key>.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func redisKey(namespace, key string) string {
	return Key(keyPrefix, namespace, key)
}

func (r *Redis) Get(ctx context.Context, namespace, key string, dst interface{}) (bool, error) {
	data, err := r.client.Get(ctx, redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKey(namespace, key), data, ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, namespaces ...string) error {
	for _, ns := range namespaces {
		var keys []string
		iter := r.client.Scan(ctx, 0, Key(keyPrefix, ns, "*"), 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}
