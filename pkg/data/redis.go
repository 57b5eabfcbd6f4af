package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisBackend struct {
	client *redis.Client
	prefix string
}

func newRedisBackend(ctx context.Context, url, prefix string) (*redisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &redisBackend{client: client, prefix: prefix}, nil
}

func (b *redisBackend) key(k string) string {
	return b.prefix + ":" + k
}

func (b *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (b *redisBackend) put(ctx context.Context, entries map[string][]byte) error {
	pipe := b.client.TxPipeline()
	for key, value := range entries {
		pipe.Set(ctx, b.key(key), value, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (b *redisBackend) close() error {
	return b.client.Close()
}
