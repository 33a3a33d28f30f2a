// Package store defines the abstract EventStore and SnapshotStore
// contracts (spec §4.1, §4.2) that the concrete storage drivers
// (postgres, bbolt, sqlite, in-memory) satisfy; the mongo driver
// satisfies SnapshotStore only. The core
// orchestration layers in internal/pipeline, internal/saga, etc. depend
// only on these interfaces.
package store

import (
	"context"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
)

// EventStore is the append-only per-aggregate log (spec §4.1).
type EventStore interface {
	// Append persists pages atomically for (edition, domain, root).
	// Pages with an explicit sequence are validated against the store's
	// current next_sequence; pages carrying the force marker are
	// assigned the next available sequence. Returns
	// merr.SequenceConflictError when an explicit sequence disagrees.
	Append(ctx context.Context, edition, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error)

	Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error)
	ReadFrom(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error)
	// ReadRange is half-open: [fromSeq, toSeq).
	ReadRange(ctx context.Context, edition, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error)
	ReadUntilTimestamp(ctx context.Context, edition, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error)

	// NextSequence returns max(sequence)+1, or 0 for an empty aggregate.
	NextSequence(ctx context.Context, edition, domain string, root uuid.UUID) (uint32, error)

	// FindByCorrelation returns every aggregate root in domain that has
	// appended at least one event carrying correlationID. Used by saga
	// and process-manager destination/trigger-state fetching (spec §4.7
	// step 2).
	FindByCorrelation(ctx context.Context, edition, domain, correlationID string) ([]uuid.UUID, error)

	ListRoots(ctx context.Context, edition, domain string) ([]uuid.UUID, error)
	ListDomains(ctx context.Context, edition string) ([]string, error)
}

// SnapshotStore is the latest-snapshot KV (spec §4.2). Put is
// last-writer-wins for a given (edition, domain, root).
type SnapshotStore interface {
	Get(ctx context.Context, edition, domain string, root uuid.UUID) (*model.Snapshot, error)
	Put(ctx context.Context, edition, domain string, root uuid.UUID, snap model.Snapshot) error
	Delete(ctx context.Context, edition, domain string, root uuid.UUID) error
}
