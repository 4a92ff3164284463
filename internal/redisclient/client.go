package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheProduct stores a serialized product with a TTL
func (c *Client) CacheProduct(ctx context.Context, productID int64, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, productKey(productID), data, ttl).Err()
}

// GetCachedProduct retrieves a serialized product, ErrCacheMiss when absent
func (c *Client) GetCachedProduct(ctx context.Context, productID int64) ([]byte, error) {
	data, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// InvalidateProduct drops the cached product, e.g. after a stock decrement
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, productKey(productID)).Err()
}

func productKey(productID int64) string {
	return fmt.Sprintf("product:%d", productID)
}

// TryMarkEventProcessed claims a gateway event id. Returns false when another
// delivery of the same event already claimed it.
func (c *Client) TryMarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("event:%s", eventID), "1", ttl).Result()
}

// WasEventProcessed checks the fast path for a processed gateway event
func (c *Client) WasEventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("event:%s", eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
