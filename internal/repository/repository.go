// Package repository implements the EventBookRepository (spec §4.3): the
// layer that composes an EventStore and a SnapshotStore into complete
// EventBooks, and persists the pages+snapshot half of a business
// response back to those two stores.
package repository

import (
	"bytes"
	"context"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/google/uuid"
)

// Options toggles snapshot read/write, independent knobs per spec §4.3.
type Options struct {
	SnapshotReadEnabled  bool
	SnapshotWriteEnabled bool
}

// DefaultOptions enables both snapshot read and write.
func DefaultOptions() Options {
	return Options{SnapshotReadEnabled: true, SnapshotWriteEnabled: true}
}

// Repository composes an EventStore and a SnapshotStore.
type Repository struct {
	events    store.EventStore
	snapshots store.SnapshotStore
	opts      Options
}

// New builds a Repository.
func New(events store.EventStore, snapshots store.SnapshotStore, opts Options) *Repository {
	return &Repository{events: events, snapshots: snapshots, opts: opts}
}

// Get returns the complete EventBook for (edition, domain, root): the
// latest snapshot (if enabled and present) plus every page from
// snapshot.Sequence+1 onward, or the full log if there is no usable
// snapshot (spec §4.3).
func (r *Repository) Get(ctx context.Context, edition, domain string, root uuid.UUID) (model.EventBook, error) {
	edition = model.NormalizeEdition(edition)

	var snap *model.Snapshot

	if r.opts.SnapshotReadEnabled {
		s, err := r.snapshots.Get(ctx, edition, domain, root)
		if err != nil {
			return model.EventBook{}, err
		}

		snap = s
	}

	from := uint32(0)
	if snap != nil {
		from = snap.Sequence + 1
	}

	pages, err := r.events.ReadFrom(ctx, edition, domain, root, from)
	if err != nil {
		return model.EventBook{}, err
	}

	return model.EventBook{
		Cover:    model.Cover{Domain: domain, Root: root, Edition: edition},
		Pages:    pages,
		Snapshot: snap,
	}, nil
}

// GetTemporalBySequence returns the EventBook consisting of every page
// with sequence <= seq. Snapshots are an optimization, not history, so
// this ignores them entirely (spec §4.3, resolved Open Question in
// DESIGN.md).
func (r *Repository) GetTemporalBySequence(ctx context.Context, edition, domain string, root uuid.UUID, seq uint32) (model.EventBook, error) {
	edition = model.NormalizeEdition(edition)

	pages, err := r.events.ReadRange(ctx, edition, domain, root, 0, seq+1)
	if err != nil {
		return model.EventBook{}, err
	}

	return model.EventBook{
		Cover: model.Cover{Domain: domain, Root: root, Edition: edition},
		Pages: pages,
	}, nil
}

// GetTemporalByTime returns the EventBook of every page with
// created_at <= ts, ignoring snapshots for the same reason as
// GetTemporalBySequence.
func (r *Repository) GetTemporalByTime(ctx context.Context, edition, domain string, root uuid.UUID, ts time.Time) (model.EventBook, error) {
	edition = model.NormalizeEdition(edition)

	pages, err := r.events.ReadUntilTimestamp(ctx, edition, domain, root, ts)
	if err != nil {
		return model.EventBook{}, err
	}

	return model.EventBook{
		Cover: model.Cover{Domain: domain, Root: root, Edition: edition},
		Pages: pages,
	}, nil
}

// NextSequence exposes the underlying store's next-sequence check for
// the pipeline's fast-path pre-validation (spec §4.5 step 3).
func (r *Repository) NextSequence(ctx context.Context, edition, domain string, root uuid.UUID) (uint32, error) {
	return r.events.NextSequence(ctx, model.NormalizeEdition(edition), domain, root)
}

// FindByCorrelation exposes the underlying store's correlation index
// for saga/process-manager trigger-state and PM-state lookup (spec
// §4.7 steps 2-3).
func (r *Repository) FindByCorrelation(ctx context.Context, edition, domain, correlationID string) ([]uuid.UUID, error) {
	return r.events.FindByCorrelation(ctx, model.NormalizeEdition(edition), domain, correlationID)
}

// Put extracts the pages portion of book and appends them via the
// EventStore, then persists SnapshotState as a new Snapshot when it
// differs (byte-compared) from the book's previously-loaded Snapshot
// and snapshot-write is enabled (spec §4.3, §4.5 step 9). Returns the
// EventBook with pages as actually assigned by the store (sequences
// resolved for any force markers).
func (r *Repository) Put(ctx context.Context, edition string, book model.EventBook) (model.EventBook, error) {
	edition = model.NormalizeEdition(edition)

	assigned, err := r.events.Append(ctx, edition, book.Cover.Domain, book.Cover.Root, book.Pages, book.Cover.CorrelationID)
	if err != nil {
		return model.EventBook{}, err
	}

	out := book
	out.Pages = assigned

	if r.opts.SnapshotWriteEnabled && book.SnapshotState != nil && r.snapshotChanged(book) {
		var lastSeq uint32
		if book.Snapshot != nil {
			lastSeq = book.Snapshot.Sequence
		}

		if len(assigned) > 0 {
			lastSeq = assigned[len(assigned)-1].Sequence
		}

		newSnap := model.Snapshot{Sequence: lastSeq, State: *book.SnapshotState}

		if err := r.snapshots.Put(ctx, edition, book.Cover.Domain, book.Cover.Root, newSnap); err != nil {
			return model.EventBook{}, err
		}

		out.Snapshot = &newSnap
	}

	return out, nil
}

func (r *Repository) snapshotChanged(book model.EventBook) bool {
	if book.Snapshot == nil {
		return true
	}

	return !bytes.Equal(book.Snapshot.State.Bytes, book.SnapshotState.Bytes) || book.Snapshot.State.TypeURL != book.SnapshotState.TypeURL
}
