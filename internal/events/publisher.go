package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smallbiznis/paygate/internal/config"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Message is the broker-neutral envelope shared by every publisher.
type Message struct {
	Key     string
	Type    string
	Body    []byte
	Headers map[string]string
}

func encode(ctx context.Context, event paymentdomain.Event) (Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", event.Type, err)
	}
	return Message{
		Key:     event.PaymentID.String(),
		Type:    string(event.Type),
		Body:    body,
		Headers: traceHeaders(ctx),
	}, nil
}

// NewPublisher builds the configured publisher and closes it with the app.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (paymentdomain.EventPublisher, error) {
	eventsCfg := cfg.Events
	switch eventsCfg.Publisher {
	case "", config.EventsPublisherLog:
		return NewLogPublisher(log), nil
	case config.EventsPublisherRabbitMQ:
		pub, err := NewRabbitMQPublisher(eventsCfg.RabbitMQURL, eventsCfg.RabbitMQExchange, log)
		if err != nil {
			return nil, err
		}
		appendClose(lc, pub.Close)
		return pub, nil
	case config.EventsPublisherKafka:
		pub, err := NewKafkaPublisher(eventsCfg.KafkaBrokers, eventsCfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		appendClose(lc, pub.Close)
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown events publisher %q", eventsCfg.Publisher)
	}
}

func appendClose(lc fx.Lifecycle, closeFn func() error) {
	if lc == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closeFn()
		},
	})
}
