package model

import (
	"fmt"
	"time"
)

// EventPage is one event in an aggregate's log (spec §3).
//
// Sequence is meaningful only when Force is false: it is the explicit
// sequence the caller expects this page to occupy. When Force is true
// the page carries the "force" marker ("auto-assign"): the store picks
// the next available sequence for it. After EventStore.append returns,
// Sequence always holds the assigned value regardless of how the page
// arrived (see internal/model's Open Question note in DESIGN.md on force
// interleaving semantics).
type EventPage struct {
	Sequence           uint32
	Force              bool
	CreatedAt          time.Time
	Event              Payload
	ExternalPayloadRef *ExternalPayloadRef
}

// Snapshot is a materialized state fold that lets the repository avoid
// replaying the full log. At most one per (edition, domain, root).
type Snapshot struct {
	Sequence uint32
	State    Payload
}

// EventBook is a Cover plus an ordered sequence of EventPages plus an
// optional Snapshot plus a transient SnapshotState the business logic
// may attach when it wants the repository to persist a new snapshot
// (spec §3, §4.5 step 9).
type EventBook struct {
	Cover         Cover
	Pages         []EventPage
	Snapshot      *Snapshot
	SnapshotState *Payload
}

// IsEmptyValid reports whether this is a brand-new aggregate: no pages,
// no snapshot (spec §3).
func (b EventBook) IsEmptyValid() bool {
	return len(b.Pages) == 0 && b.Snapshot == nil
}

// IsComplete reports whether b starts at sequence 0, or carries a
// snapshot whose sequence is exactly one less than the first page's
// sequence, i.e. snapshot + tail reconstructs the full history
// (spec §3).
func (b EventBook) IsComplete() bool {
	if b.IsEmptyValid() {
		return true
	}

	if len(b.Pages) == 0 {
		// snapshot with no tail: complete iff the snapshot alone is the
		// full history, which IsComplete cannot verify without knowing
		// the true head; treat as complete since nothing contradicts it.
		return true
	}

	first := b.Pages[0].Sequence

	if b.Snapshot == nil {
		return first == 0
	}

	return b.Snapshot.Sequence+1 == first
}

// FirstSequence returns the sequence of the earliest page and true, or
// 0 and false if the book has no pages.
func (b EventBook) FirstSequence() (uint32, bool) {
	if len(b.Pages) == 0 {
		return 0, false
	}

	return b.Pages[0].Sequence, true
}

// LastSequence returns the sequence of the latest page. If there are no
// pages but a snapshot exists, returns the snapshot's sequence.
func (b EventBook) LastSequence() (uint32, bool) {
	if len(b.Pages) > 0 {
		return b.Pages[len(b.Pages)-1].Sequence, true
	}

	if b.Snapshot != nil {
		return b.Snapshot.Sequence, true
	}

	return 0, false
}

// ValidateMonotonic checks spec §3's sequence invariant: pages strictly
// increasing by one, no gaps. Call after loading or before appending a
// batch of pages with explicit sequences.
func (b EventBook) ValidateMonotonic() error {
	for i := 1; i < len(b.Pages); i++ {
		if b.Pages[i].Force || b.Pages[i-1].Force {
			continue
		}

		if b.Pages[i].Sequence != b.Pages[i-1].Sequence+1 {
			return &NonMonotonicError{Prev: b.Pages[i-1].Sequence, Next: b.Pages[i].Sequence}
		}
	}

	return nil
}

// NonMonotonicError reports a gap or regression between two adjacent
// explicit sequences.
type NonMonotonicError struct {
	Prev, Next uint32
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("model: non-monotonic sequence: %d followed by %d", e.Prev, e.Next)
}
