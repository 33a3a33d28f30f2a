package store

import (
	"context"
	"sync"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
)

// MemorySnapshotStore is an in-process SnapshotStore. Put is
// last-writer-wins, matching spec §4.2.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snaps map[aggregateKey]model.Snapshot
}

// NewMemorySnapshotStore returns an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[aggregateKey]model.Snapshot)}
}

func (s *MemorySnapshotStore) Get(_ context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snaps[aggregateKey{edition, domain, root}]
	if !ok {
		return nil, nil
	}

	out := snap

	return &out, nil
}

func (s *MemorySnapshotStore) Put(_ context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snaps[aggregateKey{edition, domain, root}] = snap

	return nil
}

func (s *MemorySnapshotStore) Delete(_ context.Context, edition, domain string, root uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snaps, aggregateKey{edition, domain, root})

	return nil
}
