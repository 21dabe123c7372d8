package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ValuationCache wraps Redis based caching with per-tenant versioning. Every
// on-hand mutation bumps the tenant version, so stale totals are never served
// without storing derived state alongside the records.
type ValuationCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewValuationCache instantiates the cache helper.
func NewValuationCache(client *redis.Client, ttl time.Duration) *ValuationCache {
	return &ValuationCache{client: client, ttl: ttl}
}

func versionKey(tenantID int64) string {
	return fmt.Sprintf("inventory:%d:valuation:version", tenantID)
}

// Version returns the current cache version for a tenant, initialising when missing.
func (c *ValuationCache) Version(ctx context.Context, tenantID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, versionKey(tenantID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates cached valuations for a tenant by advancing the version.
func (c *ValuationCache) Bump(ctx context.Context, tenantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}

// Fetch loads a cached valuation or populates it using the loader. Concurrent
// rebuilds for the same tenant collapse into one loader call.
func (c *ValuationCache) Fetch(ctx context.Context, tenantID int64, loader func(context.Context) (Valuation, error)) (Valuation, error) {
	if loader == nil {
		return Valuation{}, errors.New("inventory: valuation loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	ver, err := c.Version(ctx, tenantID)
	if err != nil {
		return Valuation{}, err
	}
	key := fmt.Sprintf("inventory:%d:valuation:%d", tenantID, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Valuation
		if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Valuation{}, err
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return Valuation{}, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return Valuation{}, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return Valuation{}, err
		}
		return value, nil
	})
	if err != nil {
		return Valuation{}, err
	}
	return result.(Valuation), nil
}
