// Package bus defines the EventBus abstraction (spec §4.4): at-least-once
// delivery to domain-filtered, hierarchically-routed subscribers, a
// dead-letter queue, and optional payload-offload resolution. Concrete
// transports (internal/adapters/rabbitmq, this package's in-memory
// channel transport) satisfy this contract.
package bus

import (
	"context"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
)

// Handler processes one delivered EventBook. A Lagged delivery (see
// Delivery) is surfaced to the handler rather than swallowed, per spec
// §4.4's backpressure contract.
type Handler func(ctx context.Context, d Delivery) error

// Delivery wraps an EventBook with the at-least-once delivery metadata a
// handler needs to dedupe or to notice it lagged.
type Delivery struct {
	Book   model.EventBook
	Lagged int // > 0 when the bounded buffer dropped this many messages before this one
}

// PublishResult reports how many matching subscribers a publish reached.
// It is informational only — publish is fire-and-forget from the
// pipeline's point of view (spec §4.5 step 10): the persisted events
// remain canonical regardless of delivery count.
type PublishResult struct {
	MatchedSubscribers int
}

// FailedDelivery is what SendToDLQ receives once a handler has exhausted
// its retry budget for one message (spec §7 "Subscriber handler
// failure").
type FailedDelivery struct {
	Subscriber string
	Delivery   Delivery
	Reason     string
	Attempts   int
}

// DLQConfig carries the dead-letter retry/backoff knobs. Per spec §9's
// design note this lives on the bus itself, not a side service.
type DLQConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Subscriber receives a stream of EventBooks matching its domain filter.
type Subscriber interface {
	Name() string
	// Subscribe registers a handler. Multiple handlers on one subscriber
	// all receive each matching event (spec §4.4).
	Subscribe(h Handler)
	// StartConsuming begins delivery. Must be idempotent: calling it
	// twice does not double-deliver.
	StartConsuming(ctx context.Context) error
	Close() error
}

// EventBus is the abstract transport contract.
type EventBus interface {
	Publish(ctx context.Context, book model.EventBook) (PublishResult, error)
	// CreateSubscriber registers a subscriber matched against publishes
	// by domainFilter, a routing-key pattern using `#`/`*` wildcards
	// (spec §4.4). An empty filter matches every routing key.
	CreateSubscriber(name, domainFilter string) (Subscriber, error)

	SendToDLQ(ctx context.Context, failed FailedDelivery) error
	SubscribeDLQ(h func(ctx context.Context, f FailedDelivery) error) error
	DLQConfig() DLQConfig

	// MaxMessageSize is 0 when the transport has no limit.
	MaxMessageSize() int
	// ResolvePayload dereferences an offloaded payload (spec §4.4,
	// §4.12). Returns an error if the bus has no offload store
	// configured.
	ResolvePayload(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error)
}
