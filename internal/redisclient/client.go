package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseLockScript deletes the lock only while it still holds the caller's token
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
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

	return NewFromClient(rdb), nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func basketKey(sessionID string) string {
	return fmt.Sprintf("basket:%s", sessionID)
}

// GetBasket returns the stored basket of a session, or nil when there is none
func (c *Client) GetBasket(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, basketKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get basket failed: %w", err)
	}
	return data, nil
}

// SetBasket stores the basket of a session and refreshes its TTL
func (c *Client) SetBasket(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, basketKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set basket failed: %w", err)
	}
	return nil
}

// DeleteBasket removes the basket of a session
func (c *Client) DeleteBasket(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, basketKey(sessionID)).Err()
}

// AcquireLock acquires a distributed lock. The returned token must be
// handed back to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock held with token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Err()
}
