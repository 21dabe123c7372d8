package inventory

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ValuationCache, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewValuationCache(client, time.Minute)
	return cache, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestValuationCacheServesCachedResult(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (Valuation, error) {
		calls++
		return Valuation{TenantID: 1, TotalValue: 42.5}, nil
	}

	first, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 42.5, first.TotalValue)
	require.Equal(t, 1, calls)

	second, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 42.5, second.TotalValue)
	require.Equal(t, 1, calls, "second fetch must come from cache")
}

func TestValuationCacheBumpInvalidates(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	calls := 0
	loader := func(ctx context.Context) (Valuation, error) {
		calls++
		return Valuation{TenantID: 1, TotalValue: float64(calls)}, nil
	}

	first, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 1.0, first.TotalValue)

	require.NoError(t, cache.Bump(ctx, 1))

	second, err := cache.Fetch(ctx, 1, loader)
	require.NoError(t, err)
	require.Equal(t, 2.0, second.TotalValue, "bump must force a reload")
	require.Equal(t, 2, calls)
}

func TestValuationCacheScopesTenants(t *testing.T) {
	cache, cleanup := newTestCache(t)
	defer cleanup()
	ctx := context.Background()

	load1 := func(ctx context.Context) (Valuation, error) {
		return Valuation{TenantID: 1, TotalValue: 10}, nil
	}
	load2 := func(ctx context.Context) (Valuation, error) {
		return Valuation{TenantID: 2, TotalValue: 20}, nil
	}

	v1, err := cache.Fetch(ctx, 1, load1)
	require.NoError(t, err)
	v2, err := cache.Fetch(ctx, 2, load2)
	require.NoError(t, err)
	require.Equal(t, 10.0, v1.TotalValue)
	require.Equal(t, 20.0, v2.TotalValue)

	// Bumping one tenant leaves the other cached.
	require.NoError(t, cache.Bump(ctx, 1))
	ver2, err := cache.Version(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver2)
}

func TestNilCacheFallsBackToLoader(t *testing.T) {
	var cache *ValuationCache
	ctx := context.Background()

	val, err := cache.Fetch(ctx, 1, func(ctx context.Context) (Valuation, error) {
		return Valuation{TotalValue: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7.0, val.TotalValue)

	require.NoError(t, cache.Bump(ctx, 1))
}
