package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Bus is a bus.EventBus transport over a topic exchange, the production
// alternative to bus.MemoryBus. Grounded on the teacher's
// ProducerRabbitMQRepository.ProducerDefault (JSON body, persistent
// delivery mode) and ConsumerRabbitMQRepository.ConsumerAudit (manual
// Channel.Consume loop), merged into one type satisfying both publish
// and subscribe sides of a single contract.
type Bus struct {
	conn   *Connection
	logger mlog.Logger

	maxMessageSize int
	dlqConfig      bus.DLQConfig
	offload        bus.OffloadResolver
}

// NewBus builds a Bus over an already-open Connection.
func NewBus(conn *Connection, logger mlog.Logger) *Bus {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Bus{
		conn:   conn,
		logger: logger,
		// AMQP's default frame_max leaves well under 128KiB of usable
		// payload per frame before the broker starts fragmenting; offload
		// large events rather than rely on that.
		maxMessageSize: 128 * 1024,
		dlqConfig:      bus.DLQConfig{MaxRetries: 5},
	}
}

// WithOffloadResolver attaches a payload offload resolver.
func (b *Bus) WithOffloadResolver(r bus.OffloadResolver) *Bus {
	b.offload = r
	return b
}

// AttachOffloadResolver implements bus.OffloadAttacher.
func (b *Bus) AttachOffloadResolver(r bus.OffloadResolver) { b.offload = r }

// WithDLQConfig overrides the default retry/backoff knobs.
func (b *Bus) WithDLQConfig(cfg bus.DLQConfig) *Bus {
	b.dlqConfig = cfg
	return b
}

type wireEnvelope struct {
	Book model.EventBook
}

func (b *Bus) Publish(ctx context.Context, book model.EventBook) (bus.PublishResult, error) {
	body, err := json.Marshal(wireEnvelope{Book: book})
	if err != nil {
		return bus.PublishResult{}, fmt.Errorf("rabbitmq: marshal event book: %w", err)
	}

	err = b.conn.ch.PublishWithContext(ctx, EventsExchange, book.Cover.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return bus.PublishResult{}, fmt.Errorf("rabbitmq: publish: %w", err)
	}

	// The topic exchange itself resolves fan-out; this module has no
	// cheap way to count matching bindings without the management API,
	// so PublishResult is best-effort (spec §4.5 step 10 treats it as
	// informational only).
	return bus.PublishResult{MatchedSubscribers: 1}, nil
}

func (b *Bus) CreateSubscriber(name, domainFilter string) (bus.Subscriber, error) {
	if domainFilter == "" {
		domainFilter = "#"
	}

	if _, err := b.conn.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq: declare subscriber queue %q: %w", name, err)
	}

	if err := b.conn.ch.QueueBind(name, domainFilter, EventsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq: bind subscriber queue %q: %w", name, err)
	}

	return &subscriber{name: name, filter: domainFilter, ch: b.conn.ch, logger: b.logger}, nil
}

func (b *Bus) SendToDLQ(ctx context.Context, failed bus.FailedDelivery) error {
	body, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal failed delivery: %w", err)
	}

	return b.conn.ch.PublishWithContext(ctx, DLQExchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (b *Bus) SubscribeDLQ(h func(ctx context.Context, f bus.FailedDelivery) error) error {
	deliveries, err := b.conn.ch.Consume(DLQQueue, "dlq-consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume dlq: %w", err)
	}

	go func() {
		for d := range deliveries {
			var failed bus.FailedDelivery

			if err := json.Unmarshal(d.Body, &failed); err != nil {
				b.logger.Errorf("rabbitmq: dlq message unmarshal failed: %v", err)
				_ = d.Nack(false, false)

				continue
			}

			if err := h(context.Background(), failed); err != nil {
				b.logger.Errorf("rabbitmq: dlq handler error: %v", err)
				_ = d.Nack(false, true)

				continue
			}

			_ = d.Ack(false)
		}
	}()

	return nil
}

func (b *Bus) DLQConfig() bus.DLQConfig { return b.dlqConfig }

func (b *Bus) MaxMessageSize() int { return b.maxMessageSize }

func (b *Bus) ResolvePayload(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error) {
	if b.offload == nil {
		return model.Payload{}, merr.InternalError{EntityType: "bus", Message: "no offload resolver configured"}
	}

	return b.offload.Resolve(ctx, ref)
}

var _ bus.EventBus = (*Bus)(nil)
