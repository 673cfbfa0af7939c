package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/touch_cart.lua
var touchCartScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	touchScript   *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		touchScript:   redis.NewScript(touchCartScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(id string) string { return "cart:" + id }

// LoadCart returns the stored cart blob, or nil when there is none.
func (c *Client) LoadCart(ctx context.Context, cartID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", cartID, err)
	}
	return data, nil
}

// SaveCart overwrites the cart blob and resets its TTL
func (c *Client) SaveCart(ctx context.Context, cartID string, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cartKey(cartID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", cartID, err)
	}
	return nil
}

// TouchCart extends the cart TTL; it reports false when the cart has expired.
func (c *Client) TouchCart(ctx context.Context, cartID string, ttl time.Duration) (bool, error) {
	res, err := c.touchScript.Run(ctx, c.rdb, []string{cartKey(cartID)}, int64(ttl.Seconds())).Int64()
	if err != nil {
		return false, fmt.Errorf("touch cart script failed: %w", err)
	}
	return res == 1, nil
}

// DeleteCart removes a stored cart
func (c *Client) DeleteCart(ctx context.Context, cartID string) error {
	return c.rdb.Del(ctx, cartKey(cartID)).Err()
}

// SetIdempotencyKey remembers which order an idempotency key produced
func (c *Client) SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the order id recorded for key, or "" if none
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// AcquireLock acquires a distributed lock. The returned token must be passed
// to ReleaseLock; an empty token means the lock is held elsewhere.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock releases a lock only if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
