package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
)

const (
	defaultStatusTTL = 5 * time.Minute
	statusKeyPrefix  = "payment:"
)

// StatusCache stores terminal payment status projections under payment:{id}.
type StatusCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStatusCache(client redis.Cmdable, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

// ProvideStatusCache returns a nil cache when caching is disabled.
func ProvideStatusCache(cfg config.Config, client *redis.Client) paymentdomain.StatusCache {
	if !cfg.Cache.Enabled || client == nil {
		return nil
	}
	return NewStatusCache(client, cfg.Cache.PaymentStatusTTL)
}

func StatusKey(paymentID uuid.UUID) string {
	return statusKeyPrefix + paymentID.String()
}

func (c *StatusCache) Get(ctx context.Context, paymentID uuid.UUID) (*paymentdomain.StatusView, bool, error) {
	raw, err := c.client.Get(ctx, StatusKey(paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var view paymentdomain.StatusView
	if err := json.Unmarshal(raw, &view); err != nil {
		// A corrupt entry is dropped and reported as a miss.
		_ = c.client.Del(ctx, StatusKey(paymentID)).Err()
		return nil, false, nil
	}
	return &view, true, nil
}

// Set ignores Pending projections.
func (c *StatusCache) Set(ctx context.Context, view paymentdomain.StatusView) error {
	if !view.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, StatusKey(view.PaymentID), raw, c.ttl).Err()
}

var _ paymentdomain.StatusCache = (*StatusCache)(nil)
