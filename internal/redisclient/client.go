package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/acquire_lock.lua
var acquireLockScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/pop_due.lua
var popDueScript string

const (
	lockKeyPrefix  = "lock:"
	expiryIndexKey = "locks:expiry"
	remindIndexKey = "locks:remind"
)

// Acquire outcomes returned by the acquire script
const (
	AcquireOK         int64 = 1
	AcquireLocked     int64 = 0
	AcquireOutOfStock int64 = -1
)

type Client struct {
	rdb           *redis.Client
	acquireScript *redis.Script
	releaseScript *redis.Script
	popDueScript  *redis.Script
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
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		acquireScript: redis.NewScript(acquireLockScript),
		releaseScript: redis.NewScript(releaseLockScript),
		popDueScript:  redis.NewScript(popDueScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func lockKey(productID string) string {
	return lockKeyPrefix + productID
}

// AcquireLock atomically validates the stock snapshot, sets the lock with a TTL
// and indexes it for the expiry sweeper. remindAt may be zero.
func (c *Client) AcquireLock(ctx context.Context, productID, orderID string, ttl time.Duration, remindAt time.Time, stock int) (int64, error) {
	expiresAt := time.Now().Add(ttl)
	var remindMs int64
	if !remindAt.IsZero() {
		remindMs = remindAt.UnixMilli()
	}

	result, err := c.acquireScript.Run(ctx, c.rdb,
		[]string{lockKey(productID), expiryIndexKey, remindIndexKey},
		orderID, ttl.Milliseconds(), expiresAt.UnixMilli(), remindMs, stock,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("acquire lock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type %T", result)
	}
	return code, nil
}

// PeekLock returns the order id holding the product lock, if any
func (c *Client) PeekLock(ctx context.Context, productID string) (string, bool, error) {
	orderID, err := c.rdb.Get(ctx, lockKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// LockTTL returns the remaining lifetime of a product lock; zero when absent
func (c *Client) LockTTL(ctx context.Context, productID string) (time.Duration, error) {
	ttl, err := c.rdb.PTTL(ctx, lockKey(productID)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// ReleaseLock removes the lock only if orderID still holds it
func (c *Client) ReleaseLock(ctx context.Context, productID, orderID string) (bool, error) {
	result, err := c.releaseScript.Run(ctx, c.rdb,
		[]string{lockKey(productID), expiryIndexKey, remindIndexKey},
		orderID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock script failed: %w", err)
	}
	return result == 1, nil
}

// PopExpired removes and returns order ids whose lock expiry is at or before now
func (c *Client) PopExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return c.popDue(ctx, expiryIndexKey, now, limit)
}

// PopReminders removes and returns order ids whose reminder is due
func (c *Client) PopReminders(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return c.popDue(ctx, remindIndexKey, now, limit)
}

func (c *Client) popDue(ctx context.Context, key string, now time.Time, limit int) ([]string, error) {
	members, err := c.popDueScript.Run(ctx, c.rdb, []string{key}, now.UnixMilli(), limit).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop due script failed: %w", err)
	}
	return members, nil
}
