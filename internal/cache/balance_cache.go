package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dinver-app/dinver-sub009/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const balanceTTL = 5 * time.Minute

// BalanceCache is a redis read cache for balance views. It is strictly an
// optimization: every write path invalidates, and a miss falls through to
// the database.
type BalanceCache struct {
	client *redis.Client
}

// New connects to redis. An empty addr returns a nil cache, which every
// method treats as a no-op, so the engine runs without redis in dev.
func New(addr, password string, db int) (*BalanceCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &BalanceCache{client: client}, nil
}

func key(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}

// Get returns the cached balance or redis.Nil-backed miss.
func (c *BalanceCache) Get(ctx context.Context, userID int64) (*domain.Balance, error) {
	if c == nil {
		return nil, redis.Nil
	}
	val, err := c.client.Get(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}
	var b domain.Balance
	if err := json.Unmarshal([]byte(val), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *BalanceCache) Set(ctx context.Context, b *domain.Balance) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(b.UserID), raw, balanceTTL).Err()
}

func (c *BalanceCache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, key(userID)).Err()
}

// Enabled reports whether a redis backend is configured.
func (c *BalanceCache) Enabled() bool {
	return c != nil
}

// Ping checks the redis connection for readiness probes.
func (c *BalanceCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Miss reports whether err is a cache miss rather than a redis failure.
func Miss(err error) bool {
	return err == redis.Nil
}
