// Package edition implements the edition manager (spec §4.10): a
// forked timeline sharing a prefix with main up to a per-aggregate
// divergence point, never merged back. Grounded on
// internal/repository.Repository.Get's own snapshot-plus-tail merge
// (the same "stitch two partial sources into one EventBook" shape),
// generalized here to two whole EventStores instead of a snapshot and
// a log.
package edition

import (
	"sync"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
)

// Manager owns edition metadata: registration, lookup, teardown (spec
// §4.10). It does not own the data partitions themselves — those are
// wired per-edition into a CompositeEventStore by the caller.
type Manager struct {
	mu       sync.RWMutex
	editions map[string]model.Edition
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{editions: make(map[string]model.Edition)}
}

// Create registers a new edition. No data is copied: divergences only
// records where each named aggregate's history forks (spec §4.10).
func (m *Manager) Create(name string, divergences []model.DivergencePoint, description string) (model.Edition, error) {
	if name == "" || name == model.MainEdition {
		return model.Edition{}, merr.ValidationError{EntityType: "edition", Message: "edition name must be non-empty and not \"" + model.MainEdition + "\""}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.editions[name]; exists {
		return model.Edition{}, merr.ValidationError{EntityType: "edition", Message: "edition " + name + " already exists"}
	}

	ed := model.Edition{Name: name, Divergences: divergences, Description: description}
	m.editions[name] = ed

	return ed, nil
}

// Delete tears down an edition's metadata. Edition event rows are not
// deleted automatically: retention is a separate policy (spec §4.10).
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.editions[name]; !exists {
		return merr.NotFoundError{EntityType: "edition", Message: "edition " + name + " not found"}
	}

	delete(m.editions, name)

	return nil
}

// Get returns an edition's metadata.
func (m *Manager) Get(name string) (model.Edition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ed, ok := m.editions[name]

	return ed, ok
}

// List returns every registered edition, main excluded (main is never
// registered — it is the implicit default).
func (m *Manager) List() []model.Edition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Edition, 0, len(m.editions))
	for _, ed := range m.editions {
		out = append(out, ed)
	}

	return out
}

func divergenceKey(domain string, root uuid.UUID) string {
	return domain + "/" + root.String()
}

// divergenceIndex is a lookup from (domain, root) to its DivergencePoint
// within one edition, built once at CompositeEventStore construction.
type divergenceIndex map[string]model.DivergencePoint

func newDivergenceIndex(points []model.DivergencePoint) divergenceIndex {
	idx := make(divergenceIndex, len(points))
	for _, p := range points {
		idx[divergenceKey(p.Domain, p.Root)] = p
	}

	return idx
}
