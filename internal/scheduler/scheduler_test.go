package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/clock"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

type stubPaymentService struct {
	paymentdomain.Service
	calls     int
	limit     int
	published int
	err       error
	block     bool
}

func (s *stubPaymentService) PublishPending(ctx context.Context, limit int) (int, error) {
	s.calls++
	s.limit = limit
	if s.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return s.published, s.err
}

func newTestScheduler(t *testing.T, svc paymentdomain.Service, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:        zap.NewNop(),
		PaymentSvc: svc,
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)),
		Config:     cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRunOncePublishesBatch(t *testing.T) {
	svc := &stubPaymentService{published: 3}
	s := newTestScheduler(t, svc, Config{BatchSize: 25})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if svc.calls != 1 || svc.limit != 25 {
		t.Fatalf("expected one call with limit 25, got %d calls limit %d", svc.calls, svc.limit)
	}
}

func TestRunOnceWrapsErrors(t *testing.T) {
	boom := errors.New("db down")
	s := newTestScheduler(t, &stubPaymentService{err: boom}, Config{})

	err := s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRunOnceTimeoutIsSoft(t *testing.T) {
	s := newTestScheduler(t, &stubPaymentService{block: true}, Config{JobTimeout: 5 * time.Millisecond})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected timeout to be swallowed, got %v", err)
	}
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	svc := &stubPaymentService{}
	s := newTestScheduler(t, svc, Config{RunInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunForever(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
	if svc.calls < 1 {
		t.Fatalf("expected an immediate first run")
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RunInterval != 30*time.Second || cfg.BatchSize != 100 || cfg.JobTimeout != 20*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
