package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

func TestClassifyPersistReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: PersistReasonDeadlineExceeded},
		{name: "gorm_duplicate", err: gorm.ErrDuplicatedKey, want: PersistReasonUniqueViolation},
		{name: "pg_unique", err: &pgconn.PgError{Code: "23505"}, want: PersistReasonUniqueViolation},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: PersistReasonSerializationFailure},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: PersistReasonDBLockTimeout},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: PersistReasonDB},
		{name: "unknown", err: errors.New("boom"), want: PersistReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPersistReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveAcquirerCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newGatewayMetrics(registry, Config{ServiceName: "paygate", Environment: "test"})

	m.ObserveAcquirerCall(AcquirerOutcomeApproved, 120*time.Millisecond)
	m.ObserveAcquirerCall(AcquirerOutcomeApproved, 80*time.Millisecond)
	m.ObserveAcquirerCall(AcquirerOutcomeTimeout, 30*time.Second)

	if got := testutil.ToFloat64(m.acquirerRequests.WithLabelValues(AcquirerOutcomeApproved)); got != 2 {
		t.Fatalf("expected 2 approved calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.acquirerRequests.WithLabelValues(AcquirerOutcomeTimeout)); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "paygate_acquirer_request_duration_seconds" {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatalf("expected duration histogram to be registered")
	}
	if histogram.GetSampleCount() != 3 {
		t.Fatalf("expected 3 samples, got %d", histogram.GetSampleCount())
	}
}

func TestCircuitStateAndCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newGatewayMetrics(registry, Config{})

	m.SetCircuitState(2)
	if got := testutil.ToFloat64(m.circuitState); got != 2 {
		t.Fatalf("expected circuit state 2, got %v", got)
	}

	m.IncCacheLookup(CacheResultHit)
	m.IncCacheLookup(CacheResultMiss)
	m.IncCacheLookup(CacheResultHit)
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues(CacheResultHit)); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}

	m.IncPaymentProcessed("Successful")
	if got := testutil.ToFloat64(m.paymentsProcessed.WithLabelValues("successful")); got != 1 {
		t.Fatalf("expected status label to be lower-cased")
	}
}

func TestNilGatewayMetricsIsSafe(t *testing.T) {
	var m *GatewayMetrics
	m.ObserveAcquirerCall(AcquirerOutcomeApproved, time.Second)
	m.SetCircuitState(1)
	m.IncCacheLookup(CacheResultMiss)
	m.IncPersistError(errors.New("boom"))
}
