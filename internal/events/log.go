package events

import (
	"context"

	"github.com/smallbiznis/paygate/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(ctx context.Context, event paymentdomain.Event) error {
	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("payment_id", event.PaymentID.String()),
		zap.String("status", string(event.Status)),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.AcquirerReference != "" {
		fields = append(fields, zap.String("acquirer_reference", event.AcquirerReference))
	}
	logger.WithContext(ctx, p.log).Info("payment event", fields...)
	return nil
}
