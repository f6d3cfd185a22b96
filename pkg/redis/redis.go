package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/towerclub/ambassador-server/pkg/config"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Wrap wraps an existing redis client, used by tests
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

// AcquireLock takes a best-effort distributed lock. It returns false when the
// lock is already held elsewhere.
func (c *Client) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, owner, ttl).Result()
}

// ReleaseLock releases a lock previously taken with AcquireLock. Only the
// owner may release it; a lock taken over by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, key, owner string) error {
	current, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != owner {
		return nil
	}
	return c.Del(ctx, key).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
