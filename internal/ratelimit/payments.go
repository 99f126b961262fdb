package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
)

const keyPaymentsMerchant = "ratelimit:payments:merchant:%s"

// PaymentsLimiter throttles payment submissions per merchant.
type PaymentsLimiter struct {
	bucket *GCRA
	rate   float64
	burst  int
}

// NewPaymentsLimiter returns nil when rate limiting is disabled.
func NewPaymentsLimiter(cfg config.Config, client *redis.Client) (*PaymentsLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limiting requires redis")
	}
	if limitCfg.PaymentsRate <= 0 || limitCfg.PaymentsBurst <= 0 {
		return nil, errBadLimits
	}
	return newPaymentsLimiter(client, limitCfg.PaymentsRate, limitCfg.PaymentsBurst), nil
}

func newPaymentsLimiter(client redis.Scripter, rate float64, burst int) *PaymentsLimiter {
	return &PaymentsLimiter{bucket: NewGCRA(client), rate: rate, burst: burst}
}

func (l *PaymentsLimiter) Enabled() bool {
	return l != nil
}

func (l *PaymentsLimiter) AllowMerchant(ctx context.Context, merchantID uuid.UUID) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentsMerchant, merchantID.String()), l.rate, l.burst)
}
