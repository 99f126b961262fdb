package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/clock"
	obscontext "github.com/smallbiznis/paygate/internal/observability/context"
	obslogger "github.com/smallbiznis/paygate/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobPublishOutbox = "publish_outbox"

var ErrInvalidConfig = errors.New("invalid scheduler configuration")

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

// Scheduler periodically re-publishes payment events whose delivery failed
// after commit.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.PaymentSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) (int, error)) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithRequestID(ctx, s.genID.Generate().String())
	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", name))

	processed, err := fn(ctx)
	fields := []zap.Field{
		zap.Int("processed", processed),
		zap.Int64("duration_ms", s.clock.Now().Sub(start).Milliseconds()),
	}
	if err == nil {
		if processed > 0 {
			log.Info("job finished", fields...)
		} else {
			log.Debug("job finished", fields...)
		}
		return nil
	}

	// A deadline is a soft timeout: the next tick picks up where this one stopped.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", append(fields, zap.Duration("timeout", timeout), zap.Error(err))...)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce sweeps one batch of unpublished events.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, jobPublishOutbox, s.cfg.JobTimeout, func(ctx context.Context) (int, error) {
		return s.paymentSvc.PublishPending(ctx, s.cfg.BatchSize)
	})
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
