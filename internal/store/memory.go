package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
)

type aggregateKey struct {
	edition, domain string
	root            uuid.UUID
}

type correlationKey struct {
	edition, domain, correlationID string
}

// MemoryEventStore is an in-process EventStore, the reference
// implementation the pipeline and orchestrator tests are written
// against. Safe for concurrent use.
type MemoryEventStore struct {
	mu      sync.Mutex
	logs    map[aggregateKey][]model.EventPage
	corrIdx map[correlationKey]map[uuid.UUID]struct{}
}

// NewMemoryEventStore returns an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		logs:    make(map[aggregateKey][]model.EventPage),
		corrIdx: make(map[correlationKey]map[uuid.UUID]struct{}),
	}
}

func (s *MemoryEventStore) Append(_ context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aggregateKey{edition, domain, root}
	existing := s.logs[key]

	var next uint32
	if len(existing) > 0 {
		next = existing[len(existing)-1].Sequence + 1
	}

	assigned := make([]model.EventPage, len(pages))
	cursor := next

	for i, p := range pages {
		if p.Force {
			p.Sequence = cursor
		} else if p.Sequence != cursor {
			return nil, merr.SequenceConflictError{EntityType: domain, Expected: cursor, Actual: next}
		}

		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}

		assigned[i] = p
		cursor++
	}

	s.logs[key] = append(existing, assigned...)

	if correlationID != "" {
		ck := correlationKey{edition, domain, correlationID}
		if s.corrIdx[ck] == nil {
			s.corrIdx[ck] = make(map[uuid.UUID]struct{})
		}

		s.corrIdx[ck][root] = struct{}{}
	}

	out := make([]model.EventPage, len(assigned))
	copy(out, assigned)

	return out, nil
}

func (s *MemoryEventStore) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	return s.ReadFrom(ctx, edition, domain, root, 0)
}

func (s *MemoryEventStore) ReadFrom(_ context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := s.logs[aggregateKey{edition, domain, root}]

	var out []model.EventPage

	for _, p := range pages {
		if p.Sequence >= fromSeq {
			out = append(out, p)
		}
	}

	return out, nil
}

func (s *MemoryEventStore) ReadRange(_ context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := s.logs[aggregateKey{edition, domain, root}]

	var out []model.EventPage

	for _, p := range pages {
		if p.Sequence >= fromSeq && p.Sequence < toSeq {
			out = append(out, p)
		}
	}

	return out, nil
}

func (s *MemoryEventStore) ReadUntilTimestamp(_ context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := s.logs[aggregateKey{edition, domain, root}]

	var out []model.EventPage

	for _, p := range pages {
		if !p.CreatedAt.After(ts) {
			out = append(out, p)
		}
	}

	return out, nil
}

func (s *MemoryEventStore) NextSequence(_ context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := s.logs[aggregateKey{edition, domain, root}]
	if len(pages) == 0 {
		return 0, nil
	}

	return pages[len(pages)-1].Sequence + 1, nil
}

func (s *MemoryEventStore) FindByCorrelation(_ context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.corrIdx[correlationKey{edition, domain, correlationID}]

	out := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out, nil
}

func (s *MemoryEventStore) ListRoots(_ context.Context, edition, domain string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []uuid.UUID

	for key := range s.logs {
		if key.edition == edition && key.domain == domain {
			out = append(out, key.root)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out, nil
}

func (s *MemoryEventStore) ListDomains(_ context.Context, edition string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})

	for key := range s.logs {
		if key.edition == edition {
			seen[key.domain] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}

	sort.Strings(out)

	return out, nil
}
