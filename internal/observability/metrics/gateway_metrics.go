package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Acquirer call outcomes.
const (
	AcquirerOutcomeApproved        = "approved"
	AcquirerOutcomeDeclined        = "declined"
	AcquirerOutcomeTimeout         = "timeout"
	AcquirerOutcomeUnavailable     = "unavailable"
	AcquirerOutcomeInvalidResponse = "invalid_response"
	AcquirerOutcomeCircuitOpen     = "circuit_open"
)

// Status cache lookup results.
const (
	CacheResultHit   = "hit"
	CacheResultMiss  = "miss"
	CacheResultError = "error"
)

// Persistence failure reasons.
const (
	PersistReasonDeadlineExceeded     = "deadline_exceeded"
	PersistReasonUniqueViolation      = "unique_violation"
	PersistReasonSerializationFailure = "serialization_failure"
	PersistReasonDBLockTimeout        = "db_lock_timeout"
	PersistReasonDB                   = "db"
	PersistReasonUnknown              = "unknown"
)

// GatewayMetrics captures payment pipeline health signals.
type GatewayMetrics struct {
	acquirerRequests  *prometheus.CounterVec
	acquirerDuration  prometheus.Observer
	acquirerRetries   prometheus.Counter
	circuitState      prometheus.Gauge
	paymentsProcessed *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	persistErrors     *prometheus.CounterVec
	outboxPending     prometheus.Gauge

	outcomeCounters map[string]prometheus.Counter
}

var (
	gatewayMetricsOnce sync.Once
	gatewayMetrics     *GatewayMetrics
)

// Gateway returns the singleton gateway metrics registry.
func Gateway() *GatewayMetrics {
	return GatewayWithConfig(Config{})
}

// GatewayWithConfig returns the singleton gateway metrics registry using config labels.
func GatewayWithConfig(cfg Config) *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = newGatewayMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return gatewayMetrics
}

// ResetGatewayMetricsForTest resets the gateway metrics singleton for tests.
func ResetGatewayMetricsForTest() {
	gatewayMetricsOnce = sync.Once{}
	gatewayMetrics = nil
}

// NewGatewayMetricsForRegistry builds an unshared metrics set on the given registerer.
func NewGatewayMetricsForRegistry(registerer prometheus.Registerer, cfg Config) *GatewayMetrics {
	return newGatewayMetrics(registerer, cfg)
}

func newGatewayMetrics(registerer prometheus.Registerer, cfg Config) *GatewayMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName(cfg.ServiceName),
		"env":     environment,
	}

	acquirerRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paygate_acquirer_requests_total",
		Help:        "Acquirer authorization calls by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	acquirerDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "paygate_acquirer_request_duration_seconds",
		Help:        "End-to-end acquirer call latency including retries.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		ConstLabels: constLabels,
	})
	acquirerRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "paygate_acquirer_retries_total",
		Help:        "Acquirer attempts beyond the first.",
		ConstLabels: constLabels,
	})
	circuitState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "paygate_acquirer_circuit_state",
		Help:        "Acquirer circuit breaker state: 0 closed, 1 half-open, 2 open.",
		ConstLabels: constLabels,
	})
	paymentsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paygate_payments_processed_total",
		Help:        "Payments reaching a terminal status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paygate_payment_status_cache_total",
		Help:        "Payment status cache lookups by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	persistErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paygate_payment_persist_errors_total",
		Help:        "Payment persistence failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	outboxPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "paygate_payment_events_pending",
		Help:        "Unpublished payment events seen by the last outbox sweep.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		acquirerRequests,
		acquirerDuration,
		acquirerRetries,
		circuitState,
		paymentsProcessed,
		cacheLookups,
		persistErrors,
		outboxPending,
	)

	outcomeCounters := map[string]prometheus.Counter{}
	for _, outcome := range []string{
		AcquirerOutcomeApproved,
		AcquirerOutcomeDeclined,
		AcquirerOutcomeTimeout,
		AcquirerOutcomeUnavailable,
		AcquirerOutcomeInvalidResponse,
		AcquirerOutcomeCircuitOpen,
	} {
		outcomeCounters[outcome] = acquirerRequests.WithLabelValues(outcome)
	}

	return &GatewayMetrics{
		acquirerRequests:  acquirerRequests,
		acquirerDuration:  acquirerDuration,
		acquirerRetries:   acquirerRetries,
		circuitState:      circuitState,
		paymentsProcessed: paymentsProcessed,
		cacheLookups:      cacheLookups,
		persistErrors:     persistErrors,
		outboxPending:     outboxPending,
		outcomeCounters:   outcomeCounters,
	}
}

// ObserveAcquirerCall records one logical acquirer call.
func (m *GatewayMetrics) ObserveAcquirerCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if counter, ok := m.outcomeCounters[outcome]; ok {
		counter.Inc()
	} else {
		m.acquirerRequests.WithLabelValues(outcome).Inc()
	}
	if duration < 0 {
		duration = 0
	}
	m.acquirerDuration.Observe(duration.Seconds())
}

func (m *GatewayMetrics) IncAcquirerRetry() {
	if m == nil {
		return
	}
	m.acquirerRetries.Inc()
}

// SetCircuitState publishes the breaker state as 0 closed, 1 half-open, 2 open.
func (m *GatewayMetrics) SetCircuitState(state int) {
	if m == nil {
		return
	}
	m.circuitState.Set(float64(state))
}

func (m *GatewayMetrics) IncPaymentProcessed(status string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(strings.ToLower(status)).Inc()
}

func (m *GatewayMetrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *GatewayMetrics) IncPersistError(err error) {
	if m == nil || err == nil {
		return
	}
	m.persistErrors.WithLabelValues(ClassifyPersistReason(err)).Inc()
}

func (m *GatewayMetrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(count))
}

// ClassifyPersistReason maps storage errors to low-cardinality reasons.
func ClassifyPersistReason(err error) string {
	if err == nil {
		return PersistReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return PersistReasonDeadlineExceeded
	}
	if isUniqueViolation(err) {
		return PersistReasonUniqueViolation
	}
	if hasPGCode(err, "40001") {
		return PersistReasonSerializationFailure
	}
	if hasPGCode(err, "55P03") {
		return PersistReasonDBLockTimeout
	}
	if isDBError(err) {
		return PersistReasonDB
	}
	return PersistReasonUnknown
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
