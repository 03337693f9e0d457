package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// NewAMQPBus creates a bus over a RabbitMQ topic exchange. Each process owns
// one exclusive auto-delete queue bound once per subscribed group.
func NewAMQPBus(url, exchange string) (Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	t, err := newAMQPTransport(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	b := newRemoteBus(t)
	t.dispatch = b.dispatch
	go t.consume()
	log.Info().Str("module", "bus").Str("transport", "amqp").Str("exchange", exchange).Str("queue", t.queue).Msg("rabbitmq bus connected")
	return b, nil
}

type amqpTransport struct {
	conn       *amqp.Connection
	consumeCh  *amqp.Channel
	publishCh  *amqp.Channel
	publishMu  sync.Mutex
	exchange   string
	queue      string
	deliveries <-chan amqp.Delivery
	dispatch   func(group string, payload []byte)
	done       chan struct{}
}

func newAMQPTransport(conn *amqp.Connection, exchange string) (*amqpTransport, error) {
	consumeCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	publishCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := consumeCh.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}

	q, err := consumeCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	deliveries, err := consumeCh.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	return &amqpTransport{
		conn:       conn,
		consumeCh:  consumeCh,
		publishCh:  publishCh,
		exchange:   exchange,
		queue:      q.Name,
		deliveries: deliveries,
		done:       make(chan struct{}),
	}, nil
}

func (t *amqpTransport) name() string { return "amqp" }

func (t *amqpTransport) consume() {
	defer close(t.done)
	for d := range t.deliveries {
		t.dispatch(d.RoutingKey, d.Body)
	}
}

func (t *amqpTransport) subscribe(_ context.Context, group string) error {
	return t.consumeCh.QueueBind(t.queue, group, t.exchange, false, nil)
}

func (t *amqpTransport) unsubscribe(_ context.Context, group string) error {
	return t.consumeCh.QueueUnbind(t.queue, group, t.exchange, nil)
}

func (t *amqpTransport) publish(ctx context.Context, group string, payload []byte) error {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	return t.publishCh.PublishWithContext(ctx, t.exchange, group, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (t *amqpTransport) close() error {
	_ = t.publishCh.Close()
	_ = t.consumeCh.Close()
	err := t.conn.Close()
	<-t.done
	return err
}
