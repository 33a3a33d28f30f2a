package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
)

// defaultBufferSize bounds each subscriber's inbox. When full, Publish
// prefers dropping (incrementing the next delivery's Lagged count) over
// blocking the publisher beyond this package's non-blocking send, per
// spec §4.4's backpressure contract.
const defaultBufferSize = 256

// MemoryBus is an in-process EventBus transport: a channel per
// subscriber, hierarchical routing-key matching, and a DLQ modeled as
// a single registered handler (SubscribeDLQ). Grounded on the Rust original's
// lossy/channel bus (src/bus/lossy.rs, src/bus/channel/mod.rs).
type MemoryBus struct {
	logger mlog.Logger

	mu          sync.RWMutex
	subscribers map[string]*memorySubscriber

	dlqMu      sync.Mutex
	dlqHandler func(ctx context.Context, f FailedDelivery) error
	dlqConfig  DLQConfig

	offload OffloadResolver
}

// OffloadResolver dereferences an external payload reference. Left nil
// by default; internal/offload provides a concrete implementation.
type OffloadResolver interface {
	Resolve(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error)
}

// OffloadAttacher is implemented by every concrete EventBus transport
// that supports wiring in an OffloadResolver after construction, so
// internal/bootstrap can attach one generically regardless of which
// transport cfg.BusDriver selected.
type OffloadAttacher interface {
	AttachOffloadResolver(OffloadResolver)
}

// NewMemoryBus builds an empty MemoryBus.
func NewMemoryBus(logger mlog.Logger) *MemoryBus {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &MemoryBus{
		logger:      logger,
		subscribers: make(map[string]*memorySubscriber),
		dlqConfig:   DLQConfig{MaxRetries: mretry.DefaultMaxRetries, InitialBackoff: mretry.DefaultInitialBackoff, MaxBackoff: mretry.DefaultMaxBackoff},
	}
}

// WithOffloadResolver attaches a payload offload resolver.
func (b *MemoryBus) WithOffloadResolver(r OffloadResolver) *MemoryBus {
	b.offload = r
	return b
}

// AttachOffloadResolver implements OffloadAttacher.
func (b *MemoryBus) AttachOffloadResolver(r OffloadResolver) { b.offload = r }

func (b *MemoryBus) Publish(ctx context.Context, book model.EventBook) (PublishResult, error) {
	key := book.Cover.RoutingKey()

	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := 0

	for _, sub := range b.subscribers {
		if !MatchRoutingKey(sub.filter, key) {
			continue
		}

		matched++
		sub.deliver(Delivery{Book: book})
	}

	return PublishResult{MatchedSubscribers: matched}, nil
}

func (b *MemoryBus) CreateSubscriber(name, domainFilter string) (Subscriber, error) {
	if domainFilter == "" {
		domainFilter = "#"
	}

	sub := &memorySubscriber{
		name:   name,
		filter: domainFilter,
		inbox:  make(chan Delivery, defaultBufferSize),
		logger: b.logger,
		closed: make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[name] = sub
	b.mu.Unlock()

	return sub, nil
}

func (b *MemoryBus) SendToDLQ(ctx context.Context, failed FailedDelivery) error {
	b.dlqMu.Lock()
	handler := b.dlqHandler
	b.dlqMu.Unlock()

	if handler == nil {
		b.logger.Warnf("dlq: no handler registered, dropping message from subscriber %q after %d attempts: %s", failed.Subscriber, failed.Attempts, failed.Reason)
		return nil
	}

	return handler(ctx, failed)
}

func (b *MemoryBus) SubscribeDLQ(h func(ctx context.Context, f FailedDelivery) error) error {
	b.dlqMu.Lock()
	defer b.dlqMu.Unlock()

	b.dlqHandler = h

	return nil
}

func (b *MemoryBus) DLQConfig() DLQConfig { return b.dlqConfig }

func (b *MemoryBus) MaxMessageSize() int { return 0 }

func (b *MemoryBus) ResolvePayload(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error) {
	if b.offload == nil {
		return model.Payload{}, merr.InternalError{EntityType: "bus", Message: "no offload resolver configured"}
	}

	return b.offload.Resolve(ctx, ref)
}

type memorySubscriber struct {
	name   string
	filter string
	logger mlog.Logger

	inbox chan Delivery

	mu       sync.RWMutex
	handlers []Handler

	lagged  int64
	started int32
	closed  chan struct{}
}

func (s *memorySubscriber) Name() string { return s.name }

func (s *memorySubscriber) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

// deliver is the non-blocking publish side: on a full inbox it drops the
// message and counts it toward the next delivery's Lagged signal,
// instead of blocking the publisher (spec §4.4, §4.11 "Lagged" state).
func (s *memorySubscriber) deliver(d Delivery) {
	select {
	case s.inbox <- d:
	default:
		atomic.AddInt64(&s.lagged, 1)
		s.logger.Warnf("subscriber %q lagged: inbox full, dropping delivery", s.name)
	}
}

func (s *memorySubscriber) StartConsuming(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil // idempotent, spec §4.4
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case d, ok := <-s.inbox:
				if !ok {
					return
				}

				if n := atomic.SwapInt64(&s.lagged, 0); n > 0 {
					d.Lagged = int(n)
				}

				s.mu.RLock()
				handlers := append([]Handler(nil), s.handlers...)
				s.mu.RUnlock()

				for _, h := range handlers {
					if err := h(ctx, d); err != nil {
						s.logger.Errorf("subscriber %q handler error: %v", s.name, err)
					}
				}
			}
		}
	}()

	return nil
}

func (s *memorySubscriber) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}

	return nil
}
