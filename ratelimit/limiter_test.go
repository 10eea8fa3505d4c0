package ratelimit

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierMultiplier(t *testing.T) {
	assert.Equal(t, 1, TierFree.Multiplier())
	assert.Equal(t, 3, TierPro.Multiplier())
	assert.Equal(t, 10, TierEnterprise.Multiplier())
	assert.Equal(t, 1, Tier("unknown").Multiplier())
}

func TestConfigScaled(t *testing.T) {
	base := Config{MaxRequests: 10, Window: time.Minute, BlockDuration: 5 * time.Minute}

	free := base.Scaled(TierFree)
	assert.Equal(t, 10, free.MaxRequests)

	pro := base.Scaled(TierPro)
	assert.Equal(t, 30, pro.MaxRequests)
	assert.Equal(t, time.Minute, pro.Window)
	assert.Equal(t, 5*time.Minute, pro.BlockDuration)

	enterprise := base.Scaled(TierEnterprise)
	assert.Equal(t, 100, enterprise.MaxRequests)
}

// unreachableClient returns a client pointed at a port nothing listens on, so
// every command fails fast with a connection error.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            "127.0.0.1:1",
		DialTimeout:     100 * time.Millisecond,
		ReadTimeout:     100 * time.Millisecond,
		WriteTimeout:    100 * time.Millisecond,
		MaxRetries:      -1,
		PoolSize:        1,
		MinIdleConns:    0,
		ConnMaxIdleTime: time.Second,
	})
}

func TestLimiterFailsOpenWhenStoreUnreachable(t *testing.T) {
	limiter := NewRedisLimiter(unreachableClient(), "test:ratelimit:", log.New(io.Discard, "", 0))
	cfg := Config{MaxRequests: 5, Window: time.Minute}

	decision, err := limiter.IsAllowed(context.Background(), "team:1", cfg)
	require.NoError(t, err)
	require.NotNil(t, decision)

	assert.True(t, decision.Allowed)
	assert.Equal(t, 5, decision.Limit)
	assert.Equal(t, 5, decision.Remaining)
}

func TestConsumeFailsOpenWhenStoreUnreachable(t *testing.T) {
	limiter := NewRedisLimiter(unreachableClient(), "test:ratelimit:", log.New(io.Discard, "", 0))
	cfg := Config{MaxRequests: 5, Window: time.Minute}

	assert.NoError(t, limiter.Consume(context.Background(), "team:1", cfg))
}

func TestWindowKeyAlignment(t *testing.T) {
	limiter := NewRedisLimiter(nil, "rl:", log.New(io.Discard, "", 0))
	cfg := Config{MaxRequests: 5, Window: time.Minute}

	now := time.Date(2026, 3, 14, 10, 30, 45, 0, time.UTC)
	key1, reset1 := limiter.windowKey("team:1", cfg, now)
	key2, reset2 := limiter.windowKey("team:1", cfg, now.Add(10*time.Second))

	// Same window, same counter key and reset
	assert.Equal(t, key1, key2)
	assert.Equal(t, reset1, reset2)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC), reset1)

	// Next window rolls the key
	key3, _ := limiter.windowKey("team:1", cfg, now.Add(time.Minute))
	assert.NotEqual(t, key1, key3)

	// Different callers never share a counter
	key4, _ := limiter.windowKey("team:2", cfg, now)
	assert.NotEqual(t, key1, key4)
}

// storeBackedLimiter spins up an in-process Redis for tests that drive the
// real counter path
func storeBackedLimiter(t *testing.T) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	return NewRedisLimiter(rc, "test:ratelimit:", log.New(io.Discard, "", 0))
}

func TestConsumeUntilWindowExhausted(t *testing.T) {
	limiter := storeBackedLimiter(t)
	cfg := Config{MaxRequests: 5, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.IsAllowed(ctx, "team:9", cfg)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 5-i, decision.Remaining)
		require.NoError(t, limiter.Consume(ctx, "team:9", cfg))
	}

	decision, err := limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))

	// Other callers are unaffected
	other, err := limiter.IsAllowed(ctx, "team:10", cfg)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, 5, other.Remaining)
}

func TestBlockDeniesUntilReset(t *testing.T) {
	limiter := storeBackedLimiter(t)
	cfg := Config{MaxRequests: 5, Window: time.Minute}
	ctx := context.Background()

	require.NoError(t, limiter.Block(ctx, "team:9", time.Minute))

	blocked, err := limiter.IsBlocked(ctx, "team:9")
	require.NoError(t, err)
	assert.True(t, blocked)

	decision, err := limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)

	require.NoError(t, limiter.Reset(ctx, "team:9"))

	decision, err = limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 5, decision.Remaining)
}

func TestResetClearsConsumedQuota(t *testing.T) {
	limiter := storeBackedLimiter(t)
	cfg := Config{MaxRequests: 2, Window: time.Minute}
	ctx := context.Background()

	require.NoError(t, limiter.Consume(ctx, "team:9", cfg))
	require.NoError(t, limiter.Consume(ctx, "team:9", cfg))

	decision, err := limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	require.NoError(t, limiter.Reset(ctx, "team:9"))

	decision, err = limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 2, decision.Remaining)
}

func TestExhaustionTriggersConfiguredBlock(t *testing.T) {
	limiter := storeBackedLimiter(t)
	cfg := Config{MaxRequests: 1, Window: time.Minute, BlockDuration: 10 * time.Minute}
	ctx := context.Background()

	require.NoError(t, limiter.Consume(ctx, "team:9", cfg))

	decision, err := limiter.IsAllowed(ctx, "team:9", cfg)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	blocked, err := limiter.IsBlocked(ctx, "team:9")
	require.NoError(t, err)
	assert.True(t, blocked)
}
