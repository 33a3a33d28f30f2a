package edition

import (
	"context"
	"sync"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
)

// Router is the single store.EventStore the repository is constructed
// with when editions are in play: each call already carries an edition
// name (every store.EventStore method takes one), so Router just picks
// the right underlying store by that name instead of requiring callers
// to know which partition backs which edition.
type Router struct {
	mu       sync.RWMutex
	main     store.EventStore
	branches map[string]store.EventStore
}

// NewRouter wires main as the model.MainEdition store; editions are
// added via Mount as they're created.
func NewRouter(main store.EventStore) *Router {
	return &Router{main: main, branches: make(map[string]store.EventStore)}
}

// Mount registers the CompositeEventStore backing a named edition.
func (r *Router) Mount(editionName string, es store.EventStore) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.branches[editionName] = es
}

// Unmount removes a named edition's store, e.g. after Manager.Delete.
func (r *Router) Unmount(editionName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.branches, editionName)
}

func (r *Router) resolve(edition string) (store.EventStore, error) {
	edition = model.NormalizeEdition(edition)
	if edition == model.MainEdition {
		return r.main, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	es, ok := r.branches[edition]
	if !ok {
		return nil, merr.NotFoundError{EntityType: "edition", Message: "edition " + edition + " is not mounted"}
	}

	return es, nil
}

var _ store.EventStore = (*Router)(nil)

func (r *Router) Append(ctx context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.Append(ctx, edition, domain, root, pages, correlationID)
}

func (r *Router) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.Read(ctx, edition, domain, root)
}

func (r *Router) ReadFrom(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.ReadFrom(ctx, edition, domain, root, fromSeq)
}

func (r *Router) ReadRange(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.ReadRange(ctx, edition, domain, root, fromSeq, toSeq)
}

func (r *Router) ReadUntilTimestamp(ctx context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.ReadUntilTimestamp(ctx, edition, domain, root, ts)
}

func (r *Router) NextSequence(ctx context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return 0, err
	}

	return es.NextSequence(ctx, edition, domain, root)
}

func (r *Router) FindByCorrelation(ctx context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.FindByCorrelation(ctx, edition, domain, correlationID)
}

func (r *Router) ListRoots(ctx context.Context, edition, domain string) ([]uuid.UUID, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.ListRoots(ctx, edition, domain)
}

func (r *Router) ListDomains(ctx context.Context, edition string) ([]string, error) {
	es, err := r.resolve(edition)
	if err != nil {
		return nil, err
	}

	return es.ListDomains(ctx, edition)
}
