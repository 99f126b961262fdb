package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("merchant_id", "123"),
		attribute.String("payment_id", "456"),
		attribute.String("result", "approved"),
		attribute.String("route", "/api/v1/payments"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "merchant_id" || attr.Key == "payment_id" {
			t.Fatalf("expected %s to be dropped", attr.Key)
		}
	}
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordPaymentSubmission(context.Background(), "created")
	m.RecordEventPublished(context.Background(), "log", "payment.created")
	m.RecordRateLimitDenied(context.Background(), "payments", "exhausted")

	var nilMetrics *Metrics
	nilMetrics.RecordPaymentSubmission(context.Background(), "created")
}
