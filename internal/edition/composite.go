package edition

import (
	"context"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/google/uuid"
)

// CompositeEventStore is the edition-aware EventStore (spec §4.10):
// reads below an aggregate's divergence point come from the main
// partition, reads at or above come from the edition partition; writes
// go only to the edition partition. An aggregate with no recorded
// divergence point is new to this edition entirely — it has nothing to
// inherit from main, so every read and write targets the edition
// partition (decided here; the spec is silent on the no-divergence
// case, see DESIGN.md).
type CompositeEventStore struct {
	editionName string
	main        store.EventStore
	branch      store.EventStore
	divergences divergenceIndex
}

// NewCompositeEventStore builds a CompositeEventStore for one edition.
// main is the store backing model.MainEdition; branch is this
// edition's own partition.
func NewCompositeEventStore(editionName string, main, branch store.EventStore, divergences []model.DivergencePoint) *CompositeEventStore {
	return &CompositeEventStore{
		editionName: editionName,
		main:        main,
		branch:      branch,
		divergences: newDivergenceIndex(divergences),
	}
}

var _ store.EventStore = (*CompositeEventStore)(nil)

// Append writes only to the edition partition; editions cannot be
// merged back (spec §4.10).
func (s *CompositeEventStore) Append(ctx context.Context, _, domain string, root uuid.UUID, pages []model.EventPage, correlationID string) ([]model.EventPage, error) {
	return s.branch.Append(ctx, s.editionName, domain, root, pages, correlationID)
}

func (s *CompositeEventStore) Read(ctx context.Context, edition, domain string, root uuid.UUID) ([]model.EventPage, error) {
	return s.ReadFrom(ctx, edition, domain, root, 0)
}

func (s *CompositeEventStore) ReadFrom(ctx context.Context, _, domain string, root uuid.UUID, fromSeq uint32) ([]model.EventPage, error) {
	dp, diverged := s.divergences[divergenceKey(domain, root)]
	if !diverged {
		return s.branch.ReadFrom(ctx, s.editionName, domain, root, fromSeq)
	}

	var pages []model.EventPage

	if fromSeq < dp.Sequence {
		mainPages, err := s.main.ReadRange(ctx, model.MainEdition, domain, root, fromSeq, dp.Sequence)
		if err != nil {
			return nil, err
		}

		pages = append(pages, mainPages...)
	}

	branchFrom := fromSeq
	if branchFrom < dp.Sequence {
		branchFrom = dp.Sequence
	}

	branchPages, err := s.branch.ReadFrom(ctx, s.editionName, domain, root, branchFrom)
	if err != nil {
		return nil, err
	}

	return append(pages, branchPages...), nil
}

func (s *CompositeEventStore) ReadRange(ctx context.Context, _, domain string, root uuid.UUID, fromSeq, toSeq uint32) ([]model.EventPage, error) {
	dp, diverged := s.divergences[divergenceKey(domain, root)]
	if !diverged {
		return s.branch.ReadRange(ctx, s.editionName, domain, root, fromSeq, toSeq)
	}

	var pages []model.EventPage

	if fromSeq < dp.Sequence {
		mainTo := dp.Sequence
		if toSeq < mainTo {
			mainTo = toSeq
		}

		if fromSeq < mainTo {
			mainPages, err := s.main.ReadRange(ctx, model.MainEdition, domain, root, fromSeq, mainTo)
			if err != nil {
				return nil, err
			}

			pages = append(pages, mainPages...)
		}
	}

	if toSeq > dp.Sequence {
		branchFrom := fromSeq
		if branchFrom < dp.Sequence {
			branchFrom = dp.Sequence
		}

		branchPages, err := s.branch.ReadRange(ctx, s.editionName, domain, root, branchFrom, toSeq)
		if err != nil {
			return nil, err
		}

		pages = append(pages, branchPages...)
	}

	return pages, nil
}

func (s *CompositeEventStore) ReadUntilTimestamp(ctx context.Context, _, domain string, root uuid.UUID, ts time.Time) ([]model.EventPage, error) {
	_, diverged := s.divergences[divergenceKey(domain, root)]
	if !diverged {
		return s.branch.ReadUntilTimestamp(ctx, s.editionName, domain, root, ts)
	}

	mainPages, err := s.main.ReadUntilTimestamp(ctx, model.MainEdition, domain, root, ts)
	if err != nil {
		return nil, err
	}

	branchPages, err := s.branch.ReadUntilTimestamp(ctx, s.editionName, domain, root, ts)
	if err != nil {
		return nil, err
	}

	return append(mainPages, branchPages...), nil
}

// NextSequence continues the branch partition's own sequence count; an
// aggregate that has diverged but not yet appended anything in the
// edition picks up exactly where main's divergence point left off.
func (s *CompositeEventStore) NextSequence(ctx context.Context, _, domain string, root uuid.UUID) (uint32, error) {
	next, err := s.branch.NextSequence(ctx, s.editionName, domain, root)
	if err != nil {
		return 0, err
	}

	if next > 0 {
		return next, nil
	}

	if dp, diverged := s.divergences[divergenceKey(domain, root)]; diverged {
		return dp.Sequence, nil
	}

	return 0, nil
}

// FindByCorrelation unions both partitions: a correlation that started
// on main before the fork and continued into the edition should still
// resolve to the same aggregate roots.
func (s *CompositeEventStore) FindByCorrelation(ctx context.Context, _, domain, correlationID string) ([]uuid.UUID, error) {
	branchRoots, err := s.branch.FindByCorrelation(ctx, s.editionName, domain, correlationID)
	if err != nil {
		return nil, err
	}

	mainRoots, err := s.main.FindByCorrelation(ctx, model.MainEdition, domain, correlationID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(branchRoots)+len(mainRoots))
	out := make([]uuid.UUID, 0, len(branchRoots)+len(mainRoots))

	for _, roots := range [][]uuid.UUID{branchRoots, mainRoots} {
		for _, r := range roots {
			if _, ok := seen[r]; ok {
				continue
			}

			seen[r] = struct{}{}
			out = append(out, r)
		}
	}

	return out, nil
}

// ListRoots unions both partitions' roots for domain.
func (s *CompositeEventStore) ListRoots(ctx context.Context, _, domain string) ([]uuid.UUID, error) {
	branchRoots, err := s.branch.ListRoots(ctx, s.editionName, domain)
	if err != nil {
		return nil, err
	}

	mainRoots, err := s.main.ListRoots(ctx, model.MainEdition, domain)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(branchRoots)+len(mainRoots))
	out := make([]uuid.UUID, 0, len(branchRoots)+len(mainRoots))

	for _, roots := range [][]uuid.UUID{branchRoots, mainRoots} {
		for _, r := range roots {
			if _, ok := seen[r]; ok {
				continue
			}

			seen[r] = struct{}{}
			out = append(out, r)
		}
	}

	return out, nil
}

// ListDomains unions both partitions' domains.
func (s *CompositeEventStore) ListDomains(ctx context.Context, _ string) ([]string, error) {
	branchDomains, err := s.branch.ListDomains(ctx, s.editionName)
	if err != nil {
		return nil, err
	}

	mainDomains, err := s.main.ListDomains(ctx, model.MainEdition)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(branchDomains)+len(mainDomains))
	out := make([]string, 0, len(branchDomains)+len(mainDomains))

	for _, domains := range [][]string{branchDomains, mainDomains} {
		for _, d := range domains {
			if _, ok := seen[d]; ok {
				continue
			}

			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	return out, nil
}
