package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestGCRAAllowsBurstThenRefills(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	bucket := NewGCRA(client)

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "bucket:a", 1, 3)
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i)
		require.Equal(t, 3, res.Limit)
		require.Equal(t, 2-i, res.Remaining)
	}

	res, err := bucket.Allow(ctx, "bucket:a", 1, 3)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, res.RetryAfter, time.Second)

	mr.SetTime(time.Date(2025, time.June, 15, 12, 0, 1, 0, time.UTC))
	res, err = bucket.Allow(ctx, "bucket:a", 1, 3)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	require.True(t, mr.Exists("bucket:a"))
	require.Greater(t, mr.TTL("bucket:a"), time.Duration(0))
}

func TestGCRAKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	bucket := NewGCRA(client)

	res, err := bucket.Allow(ctx, "bucket:a", 1, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "bucket:b", 1, 1)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestGCRARejectsBadInput(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	bucket := NewGCRA(client)

	_, err := bucket.Allow(ctx, "", 1, 1)
	require.ErrorIs(t, err, errEmptyKey)
	_, err = bucket.Allow(ctx, "k", 0, 1)
	require.ErrorIs(t, err, errBadLimits)

	var nilBucket *GCRA
	_, err = nilBucket.Allow(ctx, "k", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestPaymentsLimiterPerMerchant(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, PaymentsRate: 1, PaymentsBurst: 2}}

	limiter, err := NewPaymentsLimiter(cfg, client)
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	first, second := uuid.New(), uuid.New()
	for i := 0; i < 2; i++ {
		res, err := limiter.AllowMerchant(ctx, first)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := limiter.AllowMerchant(ctx, first)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = limiter.AllowMerchant(ctx, second)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestPaymentsLimiterDisabled(t *testing.T) {
	limiter, err := NewPaymentsLimiter(config.Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, limiter)
	require.False(t, limiter.Enabled())

	res, err := limiter.AllowMerchant(context.Background(), uuid.New())
	require.NoError(t, err)
	require.True(t, res.Allowed)

	_, err = NewPaymentsLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, PaymentsRate: 1, PaymentsBurst: 1}}, nil)
	require.Error(t, err)
}

func TestIdempotencyLock(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	lock := NewIdempotencyLock(client, time.Minute)
	merchantID := uuid.New()

	release, ok, err := lock.Acquire(ctx, merchantID, "key-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, merchantID, "key-1")
	require.NoError(t, err)
	require.False(t, ok)

	otherRelease, ok, err := lock.Acquire(ctx, uuid.New(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	otherRelease()

	release()
	_, ok, err = lock.Acquire(ctx, merchantID, "key-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = lock.Acquire(ctx, merchantID, "key-1")
	require.NoError(t, err)
	require.True(t, ok, "expired lock must be reacquirable")
}

func TestIdempotencyLockReleaseKeepsForeignHolder(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	lock := NewIdempotencyLock(client, time.Second)
	merchantID := uuid.New()

	staleRelease, ok, err := lock.Acquire(ctx, merchantID, "key-2")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = lock.Acquire(ctx, merchantID, "key-2")
	require.NoError(t, err)
	require.True(t, ok)

	staleRelease()
	_, ok, err = lock.Acquire(ctx, merchantID, "key-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdempotencyLockReportsRedisErrors(t *testing.T) {
	mr, client := newTestRedis(t)
	lock := NewIdempotencyLock(client, time.Minute)
	mr.Close()

	release, ok, err := lock.Acquire(context.Background(), uuid.New(), "key-3")
	require.Error(t, err)
	require.False(t, ok)
	release()
}
