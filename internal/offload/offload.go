// Package offload implements payload offloading (spec §4.12's claim-check
// pattern, referenced by spec §4.4's optional `max_message_size()` /
// `resolve_payload(ref)` bus hooks): swap an oversized event payload's
// bytes for an ExternalPayloadRef, storing the bytes elsewhere. Grounded
// on internal/bus.MemoryBus.ResolvePayload's already-declared
// OffloadResolver contract, which this package provides a concrete
// implementation of.
package offload

import (
	"context"
	"sync"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
)

// Store persists and retrieves offloaded payload bodies by reference.
type Store interface {
	Put(ctx context.Context, payload model.Payload) (model.ExternalPayloadRef, error)
	Get(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error)
}

// MemoryStore is an in-process Store, the reference implementation
// orchestration-layer tests are written against. It is the only Store
// implementation in this module (none of internal/adapters provides
// one), and internal/bootstrap wires it for every storage driver.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]model.Payload
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]model.Payload)}
}

func (s *MemoryStore) Put(_ context.Context, payload model.Payload) (model.ExternalPayloadRef, error) {
	uri := "offload://" + uuid.New().String()

	s.mu.Lock()
	s.data[uri] = payload
	s.mu.Unlock()

	return model.ExternalPayloadRef{URI: uri, Size: int64(len(payload.Bytes))}, nil
}

func (s *MemoryStore) Get(_ context.Context, ref model.ExternalPayloadRef) (model.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.data[ref.URI]
	if !ok {
		return model.Payload{}, merr.NotFoundError{EntityType: "offload", Message: "no payload at " + ref.URI}
	}

	return payload, nil
}

// Offloader decides which event payloads are too large to carry inline
// and swaps them for an ExternalPayloadRef (spec §4.12). A zero-value
// Threshold disables offloading entirely.
type Offloader struct {
	store     Store
	threshold int
}

// NewOffloader builds an Offloader. threshold is the maximum inline
// payload size in bytes; payloads larger than it are offloaded.
func NewOffloader(store Store, threshold int) *Offloader {
	return &Offloader{store: store, threshold: threshold}
}

// MaxMessageSize implements the bus's optional size-limit hook (spec
// §4.4).
func (o *Offloader) MaxMessageSize() int { return o.threshold }

// ShouldOffload reports whether p's bytes exceed the configured threshold.
func (o *Offloader) ShouldOffload(p model.Payload) bool {
	return o.threshold > 0 && len(p.Bytes) > o.threshold
}

// OffloadPage replaces page.Event's bytes with an ExternalPayloadRef
// when it exceeds the threshold, keeping the type URL inline so
// consumers can still dispatch on type without resolving the payload.
// Pages under the threshold pass through unchanged.
func (o *Offloader) OffloadPage(ctx context.Context, page model.EventPage) (model.EventPage, error) {
	if !o.ShouldOffload(page.Event) {
		return page, nil
	}

	ref, err := o.store.Put(ctx, page.Event)
	if err != nil {
		return model.EventPage{}, merr.InternalError{EntityType: "offload", Message: "put payload", Err: err}
	}

	page.Event = model.Payload{TypeURL: page.Event.TypeURL}
	page.ExternalPayloadRef = &ref

	return page, nil
}

// OffloadPages maps OffloadPage over a slice, short-circuiting on the
// first failure.
func (o *Offloader) OffloadPages(ctx context.Context, pages []model.EventPage) ([]model.EventPage, error) {
	out := make([]model.EventPage, len(pages))

	for i, p := range pages {
		offloaded, err := o.OffloadPage(ctx, p)
		if err != nil {
			return nil, err
		}

		out[i] = offloaded
	}

	return out, nil
}

// Resolve implements internal/bus.OffloadResolver: dereference an
// ExternalPayloadRef back to its full Payload.
func (o *Offloader) Resolve(ctx context.Context, ref model.ExternalPayloadRef) (model.Payload, error) {
	return o.store.Get(ctx, ref)
}

// InflatePage reverses OffloadPage for a consumer (projector, repairer)
// that needs the full payload body. A page with no ExternalPayloadRef
// passes through unchanged.
func (o *Offloader) InflatePage(ctx context.Context, page model.EventPage) (model.EventPage, error) {
	if page.ExternalPayloadRef == nil {
		return page, nil
	}

	payload, err := o.store.Get(ctx, *page.ExternalPayloadRef)
	if err != nil {
		return model.EventPage{}, merr.InternalError{EntityType: "offload", Message: "get payload", Err: err}
	}

	page.Event = payload
	page.ExternalPayloadRef = nil

	return page, nil
}
