package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	amqp "github.com/rabbitmq/amqp091-go"
)

// subscriber is a bus.Subscriber backed by one durable queue bound to
// EventsExchange with filter as its topic binding key.
type subscriber struct {
	name   string
	filter string
	ch     *amqp.Channel
	logger mlog.Logger

	mu       sync.RWMutex
	handlers []bus.Handler

	started int32
}

func (s *subscriber) Name() string { return s.name }

func (s *subscriber) Subscribe(h bus.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

// StartConsuming is idempotent the same way bus.MemoryBus's subscriber
// is: a second call is a no-op rather than opening a second consumer on
// the same queue.
func (s *subscriber) StartConsuming(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	deliveries, err := s.ch.Consume(s.name, s.name, false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				s.handle(ctx, d)
			}
		}
	}()

	return nil
}

func (s *subscriber) handle(ctx context.Context, d amqp.Delivery) {
	var env wireEnvelope

	if err := json.Unmarshal(d.Body, &env); err != nil {
		s.logger.Errorf("subscriber %q: unmarshal delivery: %v", s.name, err)
		_ = d.Nack(false, false)

		return
	}

	s.mu.RLock()
	handlers := append([]bus.Handler(nil), s.handlers...)
	s.mu.RUnlock()

	delivery := bus.Delivery{Book: env.Book}

	var handlerErr error

	for _, h := range handlers {
		if err := h(ctx, delivery); err != nil {
			handlerErr = err
			s.logger.Errorf("subscriber %q handler error: %v", s.name, err)
		}
	}

	if handlerErr != nil {
		// requeue: AMQP, not this package's own DLQ, owns per-message
		// retry counting here. The pipeline-level retry budget (spec
		// §4.5, pkg/mretry) that decides when to call SendToDLQ instead
		// runs one layer up, in the subscriber's own handler.
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}

func (s *subscriber) Close() error {
	return s.ch.Cancel(s.name, false)
}

var _ bus.Subscriber = (*subscriber)(nil)
