// internal/store/redis.go - Redis imagery cache store
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tile-imagery:"

// RedisStore keeps imagery in redis with a fixed expiration
type RedisStore struct {
	client     *redis.Client
	expiration time.Duration
}

// NewRedis connects lazily to addr; a zero expiration keeps entries forever
func NewRedis(addr string, expiration time.Duration) *RedisStore {
	return &RedisStore{
		client:     redis.NewClient(&redis.Options{Addr: addr}),
		expiration: expiration,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	buf, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(buf)
}

func (s *RedisStore) Put(ctx context.Context, key string, entry *Entry) error {
	buf, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, buf, s.expiration).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
