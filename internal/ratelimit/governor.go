package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
)

// Limits is the token-bucket configuration for one scope.
type Limits struct {
	Capacity     int
	RefillPerSec float64
}

// LimitsResolver supplies per-scope limits, typically derived from the
// brand's throughput tier in the external registry.
type LimitsResolver interface {
	ResolveLimits(ctx context.Context, scopeID string) (Limits, error)
}

// LimitsResolverFunc adapts a function to a LimitsResolver.
type LimitsResolverFunc func(ctx context.Context, scopeID string) (Limits, error)

func (f LimitsResolverFunc) ResolveLimits(ctx context.Context, scopeID string) (Limits, error) {
	return f(ctx, scopeID)
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	limits     Limits
}

// Governor holds one token bucket per scope (campaign or brand id).
// Buckets refill lazily from elapsed time on each access; there is no
// background timer and no lock shared across unrelated scopes.
type Governor struct {
	resolver LimitsResolver
	fallback Limits
	now      func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewGovernor(resolver LimitsResolver, fallback Limits) *Governor {
	return &Governor{
		resolver: resolver,
		fallback: fallback,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// TryAcquire consumes one token from the scope's bucket. When denied,
// retryAfter tells the caller how long until a token becomes available.
// The acquire is the reservation: a granted token is spent even if the
// caller's send later fails for other reasons.
func (g *Governor) TryAcquire(ctx context.Context, scopeID string) (bool, time.Duration, error) {
	b, err := g.bucketFor(ctx, scopeID)
	if err != nil {
		return false, 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	g.refillLocked(b)

	if b.tokens >= 1 {
		b.tokens--
		return true, 0, nil
	}

	if b.limits.RefillPerSec <= 0 {
		// Never refills; callers should treat this as a hard deny.
		return false, time.Duration(math.MaxInt64), nil
	}
	deficit := 1 - b.tokens
	wait := time.Duration(deficit / b.limits.RefillPerSec * float64(time.Second))
	return false, wait, nil
}

// SetLimits replaces a scope's configuration, e.g. after a throughput-tier
// upgrade. The bucket is refilled to the new capacity.
func (g *Governor) SetLimits(scopeID string, limits Limits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buckets[scopeID] = &bucket{
		tokens:     float64(limits.Capacity),
		lastRefill: g.now(),
		limits:     limits,
	}
}

func (g *Governor) bucketFor(ctx context.Context, scopeID string) (*bucket, error) {
	g.mu.RLock()
	b, ok := g.buckets[scopeID]
	g.mu.RUnlock()
	if ok {
		return b, nil
	}

	limits := g.fallback
	if g.resolver != nil {
		resolved, err := g.resolver.ResolveLimits(ctx, scopeID)
		if err != nil {
			logger.Warn("rate limits unresolved, using fallback", "scope_id", scopeID, "error", err)
		} else {
			limits = resolved
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.buckets[scopeID]; ok {
		return b, nil
	}
	b = &bucket{
		tokens:     float64(limits.Capacity),
		lastRefill: g.now(),
		limits:     limits,
	}
	g.buckets[scopeID] = b
	return b, nil
}

func (g *Governor) refillLocked(b *bucket) {
	now := g.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(b.limits.Capacity), b.tokens+elapsed*b.limits.RefillPerSec)
	b.lastRefill = now
}
