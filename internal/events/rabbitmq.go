package events

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	paymentdomain "github.com/smallbiznis/paygate/internal/payment/domain"
	"go.uber.org/zap"
)

const rabbitDialTimeout = 10 * time.Second

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes to a durable topic exchange using the event
// type as routing key.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	log      *zap.Logger
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	reopen   func() (amqpChannel, error)
}

func NewRabbitMQPublisher(rawURL, exchange string, log *zap.Logger) (*RabbitMQPublisher, error) {
	amqpURL, err := validateAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(rabbitDialTimeout)})
	if err != nil {
		return nil, err
	}
	reopen := func() (amqpChannel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	p, err := newRabbitMQPublisher(exchange, log, reopen)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newRabbitMQPublisher(exchange string, log *zap.Logger, reopen func() (amqpChannel, error)) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{
		log:      log.Named("events.rabbitmq"),
		exchange: exchange,
		reopen:   reopen,
	}
	if err := p.openChannel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) Name() string { return "rabbitmq" }

func (p *RabbitMQPublisher) Publish(ctx context.Context, event paymentdomain.Event) error {
	msg, err := encode(ctx, event)
	if err != nil {
		return err
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Key + ":" + msg.Type,
		Type:         msg.Type,
		Timestamp:    event.OccurredAt,
		Headers:      headers,
		Body:         msg.Body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, msg.Type, false, false, publishing)
	if err == nil {
		return nil
	}
	// A closed channel is reopened once; the outbox sweep covers anything else.
	p.log.Warn("publish failed, reopening channel", zap.String("event_type", msg.Type), zap.Error(err))
	if reopenErr := p.openChannel(); reopenErr != nil {
		return errors.Join(err, reopenErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, msg.Type, false, false, publishing)
}

func (p *RabbitMQPublisher) openChannel() error {
	ch, err := p.reopen()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return err
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	p.channel = ch
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

func validateAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if clean == "" {
		return "", errors.New("rabbitmq url is required")
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("rabbitmq url must use amqp:// or amqps://")
	}
	return clean, nil
}

var _ paymentdomain.EventPublisher = (*RabbitMQPublisher)(nil)
