package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitPublisher publishes booking events to a durable queue named after
// the event type.  It dials per publish, so a broker outage never blocks
// startup and a later publish reconnects by itself.
type RabbitPublisher struct {
	url string
	log *zap.Logger
}

func NewRabbitPublisher(url string, log *zap.Logger) *RabbitPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitPublisher{url: url, log: log.Named("rabbitmq")}
}

// Publish sends ev as a persistent JSON message.  Errors are logged and
// returned so the caller can choose to ignore them.
func (p *RabbitPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	conn, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.String("queue", ev.Type), zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("queue", ev.Type), zap.Error(err))
		return err
	}
	return nil
}

func (p *RabbitPublisher) Close() error { return nil }

// dialTimeout bounds connecting and the AMQP handshake when ctx carries
// no deadline of its own.
const dialTimeout = 3 * time.Second

// dial connects within ctx's deadline so a silent broker cannot hold up
// the booking that is publishing.
func (p *RabbitPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	d := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		if left < d {
			d = left
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(d),
	})
}
