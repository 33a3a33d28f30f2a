// Package rabbitmq provides an amqp091-go-backed bus.EventBus (spec
// §4.4), the production transport. Grounded on the teacher's
// common/mrabbitmq.RabbitMQConnection connection-hub shape, generalized
// from a single fixed queue/exchange pair to the topic-exchange routing
// this runtime's {edition}.{domain}.{root_hex} routing keys need.
package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsExchange is the topic exchange every publish and subscriber
// binding goes through. AMQP's native "." segment / "#"/"*" wildcard
// topic matching lines up exactly with bus.MatchRoutingKey's own
// grammar, so routing keys pass straight through unmodified.
const EventsExchange = "midaz_flow.events"

// DLQExchange/DLQQueue back SendToDLQ/SubscribeDLQ: a single fixed
// fanout destination rather than per-subscriber dead-letter queues,
// since spec §4.4's DLQ is one conceptual destination shared across
// whatever subscribers exhaust their retry budget.
const (
	DLQExchange = "midaz_flow.dlq"
	DLQQueue    = "midaz_flow.dlq"
)

// Connection is a hub other types in this package hold onto and
// operate through, the way mrabbitmq.RabbitMQConnection is held by
// ProducerRabbitMQRepository/ConsumerRabbitMQRepository.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials dsn, opens one channel, and declares the topic and DLQ
// topology this package's Bus depends on.
func Connect(_ context.Context, dsn string) (*Connection, error) {
	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	c := &Connection{conn: conn, ch: ch}

	if err := c.declareTopology(); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return c, nil
}

func (c *Connection) declareTopology() error {
	if err := c.ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare events exchange: %w", err)
	}

	if err := c.ch.ExchangeDeclare(DLQExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare dlq exchange: %w", err)
	}

	if _, err := c.ch.QueueDeclare(DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare dlq queue: %w", err)
	}

	if err := c.ch.QueueBind(DLQQueue, "#", DLQExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind dlq queue: %w", err)
	}

	return nil
}

// Close releases the channel and connection.
func (c *Connection) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("rabbitmq: close channel: %w", err)
	}

	return c.conn.Close()
}
