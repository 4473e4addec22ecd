package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrMiss signals a cache lookup that found nothing.
var ErrMiss = errors.New("cache miss")

// NameCache caches resolved display names keyed by user id.
type NameCache interface {
	GetName(ctx context.Context, userID int64) (string, error)
	SetName(ctx context.Context, userID int64, name string) error
}

// RedisCache satisfies NameCache with a go-redis v9 client.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Ensure interface compliance at compile time
var _ NameCache = (*RedisCache)(nil)

// NewRedisCache connects to the given Redis URL and verifies the connection
// with a short ping.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func nameKey(userID int64) string {
	return fmt.Sprintf("identity:name:%d", userID)
}

func (r *RedisCache) GetName(ctx context.Context, userID int64) (string, error) {
	name, err := r.client.Get(ctx, nameKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (r *RedisCache) SetName(ctx context.Context, userID int64, name string) error {
	return r.client.Set(ctx, nameKey(userID), name, r.ttl).Err()
}

// Close releases the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
