package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
)

const (
	keyIdempotencyLock = "lock:payments:%s:%s"
	// Longer than the acquirer timeout plus the store write.
	defaultLockTTL = 2 * time.Minute
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// IdempotencyLock keeps a second submission with the same idempotency key
// away from the acquirer while the first is in flight.
type IdempotencyLock struct {
	client  redis.Cmdable
	release *redis.Script
	ttl     time.Duration
}

func NewIdempotencyLock(client redis.Cmdable, ttl time.Duration) *IdempotencyLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &IdempotencyLock{client: client, release: redis.NewScript(lockReleaseScript), ttl: ttl}
}

// ProvideIdempotencyLock returns nil when no redis client is configured.
func ProvideIdempotencyLock(cfg config.Config, client *redis.Client) paymentdomain.IdempotencyLocker {
	if client == nil {
		return nil
	}
	return NewIdempotencyLock(client, cfg.Acquirer.Timeout+time.Minute)
}

func (l *IdempotencyLock) Acquire(ctx context.Context, merchantID uuid.UUID, key string) (func(), bool, error) {
	lockKey := fmt.Sprintf(keyIdempotencyLock, merchantID.String(), key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}

	release := func() {
		_ = l.release.Run(context.WithoutCancel(ctx), l.client, []string{lockKey}, token).Err()
	}
	return release, true, nil
}

var _ paymentdomain.IdempotencyLocker = (*IdempotencyLock)(nil)
