package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/paygate/internal/acquirer/domain"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/observability/logger"
	"github.com/smallbiznis/paygate/internal/observability/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiKeyHeader     = "X-API-Key"
	maxResponseBytes = 1 << 20
)

var errCallTimeout = errors.New("acquirer call timed out")

// Config tunes the resilience policy of the client.
type Config struct {
	BaseURL            string
	PaymentEndpoint    string
	APIKey             string
	Timeout            time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
	BreakerWindow      time.Duration
}

// ConfigFrom maps the acquirer settings onto the client config.
func ConfigFrom(cfg config.AcquirerConfig) Config {
	return Config{
		BaseURL:            cfg.BaseURL,
		PaymentEndpoint:    cfg.PaymentEndpoint,
		APIKey:             cfg.APIKey,
		Timeout:            cfg.Timeout,
		RetryMaxAttempts:   cfg.RetryMaxAttempts,
		RetryBaseDelay:     cfg.RetryBaseDelay,
		RetryMaxDelay:      cfg.RetryMaxDelay,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		BreakerWindow:      cfg.BreakerWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	if c.BreakerWindow <= 0 {
		c.BreakerWindow = 60 * time.Second
	}
	return c
}

// Client calls a remote acquirer over HTTP. One Client, and so one circuit
// breaker, exists per acquirer endpoint and is safe for concurrent use.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[domain.PaymentResponse]
	log      *zap.Logger
	metrics  *metrics.GatewayMetrics
	tracer   trace.Tracer
}

func New(cfg Config, httpClient *http.Client, log *zap.Logger, m *metrics.GatewayMetrics) (*Client, error) {
	cfg = cfg.withDefaults()

	endpoint, err := url.JoinPath(strings.TrimSpace(cfg.BaseURL), strings.TrimSpace(cfg.PaymentEndpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid acquirer endpoint: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		http:     httpClient,
		log:      log.Named("acquirer.httpclient"),
		metrics:  m,
		tracer:   otel.Tracer("paygate/acquirer"),
	}

	bucket := cfg.BreakerWindow / 10
	if bucket <= 0 {
		bucket = cfg.BreakerWindow
	}
	failures := uint32(cfg.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker[domain.PaymentResponse](gobreaker.Settings{
		Name:         endpoint,
		MaxRequests:  1,
		Interval:     cfg.BreakerWindow,
		BucketPeriod: bucket,
		Timeout:      cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("acquirer circuit state changed",
				zap.String("endpoint", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.metrics.SetCircuitState(int(to))
		},
		IsSuccessful: isBreakerSuccess,
		IsExcluded:   isBreakerExcluded,
	})

	return c, nil
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// ProcessPayment sends one authorization request, retrying transport
// failures and 429 responses with exponential backoff inside the configured
// timeout. The circuit breaker counts each attempt.
func (c *Client) ProcessPayment(ctx context.Context, req domain.Request) (result domain.Result) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "acquirer.process_payment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment_id", req.PaymentID.String())),
	)
	defer span.End()

	log := logger.WithContext(ctx, c.log).With(zap.String("payment_id", req.PaymentID.String()))
	outcome := ""

	defer func() {
		if r := recover(); r != nil {
			log.Error("acquirer call panicked", zap.Any("panic", r))
			result = domain.Failure(domain.OutcomeUnavailable, domain.MessageUnexpected)
			outcome = string(domain.OutcomeUnavailable)
		}
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		if !result.Approved() {
			span.SetStatus(codes.Error, string(result.Outcome))
		}
		c.metrics.ObserveAcquirerCall(outcome, time.Since(start))
	}()

	body, err := json.Marshal(domain.NewPaymentRequest(req))
	if err != nil {
		log.Error("failed to encode acquirer request", zap.Error(err))
		outcome = string(domain.OutcomeUnavailable)
		return domain.Failure(domain.OutcomeUnavailable, domain.MessageUnexpected)
	}

	callCtx, cancel := context.WithTimeoutCause(ctx, c.cfg.Timeout, errCallTimeout)
	defer cancel()

	attempts := 0
	resp, err := backoff.Retry(callCtx, func() (domain.PaymentResponse, error) {
		attempts++
		out, err := c.breaker.Execute(func() (domain.PaymentResponse, error) {
			return c.send(callCtx, body)
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return out, backoff.Permanent(&callError{
				outcome:     domain.OutcomeUnavailable,
				message:     domain.MessageUnavailable,
				circuitOpen: true,
				cause:       err,
			})
		}
		var ce *callError
		if errors.As(err, &ce) && ce.retryable {
			return out, err
		}
		return out, backoff.Permanent(err)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.RetryMaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.IncAcquirerRetry()
			log.Warn("retrying acquirer call",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)

	result, outcome = classify(callCtx, resp, err)
	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.Int("attempts", attempts),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	switch result.Outcome {
	case domain.OutcomeApproved:
		log.Info("acquirer approved payment", append(fields, zap.String("reference", result.Reference))...)
	case domain.OutcomeDeclined:
		log.Warn("acquirer declined payment", append(fields, zap.String("reason", result.Message))...)
	default:
		log.Error("acquirer call failed", append(fields, zap.String("message", result.Message), zap.Error(err))...)
	}
	return result
}

func (c *Client) newBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.RetryBaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.cfg.RetryMaxDelay,
	}
}

func (c *Client) send(ctx context.Context, body []byte) (domain.PaymentResponse, error) {
	var out domain.PaymentResponse

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return out, &callError{outcome: domain.OutcomeUnavailable, message: domain.MessageUnexpected, cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return out, transportError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, c.statusError(resp)
	}

	if err := json.Unmarshal(payload, &out); err != nil || out.Success == nil {
		if err == nil {
			err = errors.New("missing success flag")
		}
		return out, &callError{
			outcome: domain.OutcomeInvalidResponse,
			message: domain.MessageInvalidResponse,
			cause:   err,
		}
	}
	return out, nil
}

func (c *Client) statusError(resp *http.Response) error {
	ce := &callError{
		outcome: domain.OutcomeUnavailable,
		message: fmt.Sprintf("Payment processor error: %d", resp.StatusCode),
		cause:   fmt.Errorf("acquirer responded %s", resp.Status),
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		ce.retryable = true
		ce.transient = true
		if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 && wait <= c.cfg.RetryMaxDelay {
			ce.cause = backoff.RetryAfter(int(wait / time.Second))
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		ce.transient = true
	}
	return ce
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), errCallTimeout) {
		return &callError{
			outcome:   domain.OutcomeTimeout,
			message:   domain.MessageTimeout,
			transient: true,
			cause:     err,
		}
	}
	if ctx.Err() != nil {
		return &callError{
			outcome:  domain.OutcomeUnavailable,
			message:  domain.MessageUnavailable,
			canceled: true,
			cause:    err,
		}
	}
	return &callError{
		outcome:   domain.OutcomeUnavailable,
		message:   domain.MessageUnavailable,
		retryable: true,
		transient: true,
		cause:     err,
	}
}

func classify(ctx context.Context, resp domain.PaymentResponse, err error) (domain.Result, string) {
	if err == nil {
		if *resp.Success {
			return domain.Approved(deref(resp.Reference)), metrics.AcquirerOutcomeApproved
		}
		reason := deref(resp.ErrorMessage)
		if reason == "" {
			reason = "Payment declined"
		}
		return domain.Declined(reason), metrics.AcquirerOutcomeDeclined
	}

	var ce *callError
	if errors.As(err, &ce) {
		if ce.circuitOpen {
			return domain.Failure(ce.outcome, ce.message), metrics.AcquirerOutcomeCircuitOpen
		}
		return domain.Failure(ce.outcome, ce.message), string(ce.outcome)
	}
	if errors.Is(err, errCallTimeout) || errors.Is(context.Cause(ctx), errCallTimeout) {
		return domain.Failure(domain.OutcomeTimeout, domain.MessageTimeout), metrics.AcquirerOutcomeTimeout
	}
	return domain.Failure(domain.OutcomeUnavailable, domain.MessageUnavailable), metrics.AcquirerOutcomeUnavailable
}

func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var _ domain.Client = (*Client)(nil)
