package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frozenGovernor(resolver LimitsResolver, fallback Limits) (*Governor, *time.Time) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	g := NewGovernor(resolver, fallback)
	g.now = func() time.Time { return now }
	return g, &now
}

func staticLimits(l Limits) LimitsResolver {
	return LimitsResolverFunc(func(ctx context.Context, scopeID string) (Limits, error) {
		return l, nil
	})
}

func TestGovernor_TryAcquire_ConsumesCapacity(t *testing.T) {
	g, _ := frozenGovernor(staticLimits(Limits{Capacity: 3, RefillPerSec: 1}), Limits{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		granted, _, err := g.TryAcquire(ctx, "cmp-1")
		require.NoError(t, err)
		assert.True(t, granted, "token %d should be granted", i)
	}

	granted, retryAfter, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, time.Second, retryAfter)
}

func TestGovernor_TryAcquire_RefillsOverTime(t *testing.T) {
	g, now := frozenGovernor(staticLimits(Limits{Capacity: 2, RefillPerSec: 2}), Limits{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		granted, _, err := g.TryAcquire(ctx, "cmp-1")
		require.NoError(t, err)
		require.True(t, granted)
	}

	granted, _, _ := g.TryAcquire(ctx, "cmp-1")
	assert.False(t, granted)

	// Half a second at 2 tokens/sec yields one token.
	*now = now.Add(500 * time.Millisecond)
	granted, _, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestGovernor_TryAcquire_RefillCapsAtCapacity(t *testing.T) {
	g, now := frozenGovernor(staticLimits(Limits{Capacity: 2, RefillPerSec: 10}), Limits{})
	ctx := context.Background()

	// A long idle period must not bank more than the capacity.
	*now = now.Add(time.Hour)

	granted := 0
	for i := 0; i < 5; i++ {
		ok, _, err := g.TryAcquire(ctx, "cmp-1")
		require.NoError(t, err)
		if ok {
			granted++
		}
	}
	assert.Equal(t, 2, granted)
}

func TestGovernor_ScopesAreIndependent(t *testing.T) {
	g, _ := frozenGovernor(staticLimits(Limits{Capacity: 1, RefillPerSec: 1}), Limits{})
	ctx := context.Background()

	granted, _, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	require.True(t, granted)

	// Exhausting cmp-1 leaves cmp-2 untouched.
	granted, _, _ = g.TryAcquire(ctx, "cmp-1")
	assert.False(t, granted)
	granted, _, err = g.TryAcquire(ctx, "cmp-2")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestGovernor_ResolverFailureFallsBack(t *testing.T) {
	resolver := LimitsResolverFunc(func(ctx context.Context, scopeID string) (Limits, error) {
		return Limits{}, errors.New("registry unreachable")
	})
	g, _ := frozenGovernor(resolver, Limits{Capacity: 1, RefillPerSec: 1})
	ctx := context.Background()

	granted, _, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, _, _ = g.TryAcquire(ctx, "cmp-1")
	assert.False(t, granted)
}

func TestGovernor_ZeroRefillIsHardDeny(t *testing.T) {
	g, _ := frozenGovernor(staticLimits(Limits{Capacity: 1, RefillPerSec: 0}), Limits{})
	ctx := context.Background()

	granted, _, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	require.True(t, granted)

	granted, retryAfter, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, time.Duration(1<<63-1), retryAfter)
}

func TestGovernor_SetLimits_ReplacesBucket(t *testing.T) {
	g, _ := frozenGovernor(staticLimits(Limits{Capacity: 1, RefillPerSec: 1}), Limits{})
	ctx := context.Background()

	granted, _, err := g.TryAcquire(ctx, "cmp-1")
	require.NoError(t, err)
	require.True(t, granted)

	// Tier upgrade refills to the new capacity immediately.
	g.SetLimits("cmp-1", Limits{Capacity: 10, RefillPerSec: 5})

	for i := 0; i < 10; i++ {
		granted, _, err := g.TryAcquire(ctx, "cmp-1")
		require.NoError(t, err)
		assert.True(t, granted)
	}
}

func TestGovernor_ConcurrentAcquiresNeverOversubscribe(t *testing.T) {
	g, _ := frozenGovernor(staticLimits(Limits{Capacity: 50, RefillPerSec: 0}), Limits{})
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := g.TryAcquire(ctx, "cmp-1")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
}
