// Package cache is a redis cache-aside layer for recipe reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/models"
)

const DefaultRecipeTTL = 5 * time.Minute

// Recipes caches recipes by id. With no client every operation is a no-op
// and every lookup misses.
type Recipes struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redisURL. An empty URL, a bad URL or a failed ping all
// yield a disabled cache rather than an error.
func New(redisURL string, logger *zap.Logger) *Recipes {
	if redisURL == "" {
		logger.Info("redis: no URL configured, caching disabled")
		return &Recipes{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis: invalid URL, caching disabled", zap.Error(err))
		return &Recipes{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis: connection failed, caching disabled", zap.Error(err))
		_ = rdb.Close()
		return &Recipes{}
	}

	logger.Info("redis: connected, caching enabled")
	return NewWithClient(rdb, DefaultRecipeTTL)
}

func NewWithClient(rdb *redis.Client, ttl time.Duration) *Recipes {
	return &Recipes{rdb: rdb, ttl: ttl}
}

func (c *Recipes) Enabled() bool {
	return c.rdb != nil
}

// Get returns the cached recipe, or nil on a miss.
func (c *Recipes) Get(ctx context.Context, id int) (*models.Recipe, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, recipeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Recipes) Set(ctx context.Context, r *models.Recipe) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, recipeKey(r.ID), b, c.ttl).Err()
}

// Invalidate drops a recipe after its counters change.
func (c *Recipes) Invalidate(ctx context.Context, id int) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, recipeKey(id)).Err()
}

func (c *Recipes) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func recipeKey(id int) string {
	return fmt.Sprintf("recipe:%d", id)
}
