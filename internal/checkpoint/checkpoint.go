// Package checkpoint implements the per-subscriber processed-sequence
// map of spec §3/§4.9/§9: a mapping from (subscriber, domain, root) to
// last_processed_sequence, used for at-least-once deduplication and
// crash recovery. Comparisons are monotonic — a checkpoint is never
// allowed to move backward, since that would make a subscriber
// reprocess work it already acknowledged.
package checkpoint

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Key identifies one checkpoint entry.
type Key struct {
	Subscriber string
	Domain     string
	Root       uuid.UUID
}

// Store is the checkpoint store contract. Concrete drivers (redis,
// bbolt) implement this; Store itself never retries — the subscriber
// decides persistence cadence (spec §3: "persisted periodically").
type Store interface {
	Get(ctx context.Context, key Key) (uint32, bool, error)
	// Advance sets the checkpoint to seq if seq is greater than the
	// currently stored value (or if there is none), and is a no-op
	// otherwise. Returns whether the value changed.
	Advance(ctx context.Context, key Key, seq uint32) (bool, error)
}

// MemoryStore is an in-process Store, bounded only by the number of
// distinct keys ever advanced — fine for a single runtime process
// (spec §5: "bounded-size with LRU eviction policies optional").
type MemoryStore struct {
	mu    sync.Mutex
	seqs  map[Key]uint32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seqs: make(map[Key]uint32)}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.seqs[key]

	return seq, ok, nil
}

func (m *MemoryStore) Advance(_ context.Context, key Key, seq uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.seqs[key]
	if ok && seq <= cur {
		return false, nil
	}

	m.seqs[key] = seq

	return true, nil
}
