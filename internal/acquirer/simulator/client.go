package simulator

import (
	"context"
	"time"

	"github.com/smallbiznis/paygate/internal/acquirer/domain"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	"github.com/smallbiznis/paygate/internal/observability/metrics"
	"go.uber.org/zap"
)

// Client is an in-process acquirer used in simulated mode.
type Client struct {
	engine  *Engine
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.GatewayMetrics
}

func NewClient(engine *Engine, timeout time.Duration, log *zap.Logger, m *metrics.GatewayMetrics) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{engine: engine, timeout: timeout, log: log.Named("acquirer.simulator"), metrics: m}
}

func (c *Client) ProcessPayment(ctx context.Context, req domain.Request) domain.Result {
	start := time.Now()
	d := c.engine.Decide(req.CardLast4)
	res := c.resolve(ctx, d)

	c.metrics.ObserveAcquirerCall(string(res.Outcome), time.Since(start))
	logger.WithContext(ctx, c.log).Info("simulated acquirer decision",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("decision", d.Kind),
		zap.String("outcome", string(res.Outcome)),
	)
	return res
}

func (c *Client) resolve(ctx context.Context, d Decision) domain.Result {
	if d.Kind == config.SimulatedTimeout {
		wait(ctx, c.timeout)
		return domain.Failure(domain.OutcomeTimeout, domain.MessageTimeout)
	}
	if !wait(ctx, d.Latency) {
		return domain.Failure(domain.OutcomeUnavailable, domain.MessageUnavailable)
	}

	switch d.Kind {
	case config.SimulatedApprove:
		return domain.Approved(d.Reference)
	case config.SimulatedDecline:
		return domain.Declined(d.Reason)
	case config.SimulatedMalformed:
		return domain.Failure(domain.OutcomeInvalidResponse, domain.MessageInvalidResponse)
	default:
		return domain.Failure(domain.OutcomeUnavailable, domain.MessageUnavailable)
	}
}

// wait sleeps for d and reports false when ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ domain.Client = (*Client)(nil)
