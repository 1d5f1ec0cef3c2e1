package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/payment"
)

// DefaultPublishTimeout bounds dialing, the AMQP handshake and the publish.
const DefaultPublishTimeout = 5 * time.Second

// Publisher sends registration confirmations to RabbitMQ.  It opens a
// connection per message.
type Publisher struct {
	url     string
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger, opts ...PublisherOption) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{url: url, timeout: DefaultPublishTimeout, now: time.Now, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegistrationConfirmed implements payment.Notifier.
func (p *Publisher) RegistrationConfirmed(ctx context.Context, c *payment.Confirmation) error {
	return p.Publish(ctx, NewRegistrationConfirmedEvent(c, p.now()))
}

// Publish writes one persistent message to the registration.confirmed
// queue, declaring it first.  The whole exchange with the broker is
// bounded by the publish timeout.  Errors are logged and returned.
func (p *Publisher) Publish(ctx context.Context, event RegistrationConfirmedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.timeout),
	})
	if err != nil {
		p.log.Error("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(RegistrationConfirmedQueue, true, false, false, false, nil); err != nil {
		p.log.Error("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.MessageID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", RegistrationConfirmedQueue, false, false, pub); err != nil {
		p.log.Error("rabbitmq publish failed", zap.Error(err))
		return err
	}
	p.log.Debug("registration confirmation published",
		zap.Uint64("registration_id", event.RegistrationID), zap.String("message_id", event.MessageID))
	return nil
}
