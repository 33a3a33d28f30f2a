package store

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventStore_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	root := uuid.New()

	pages, err := s.Append(ctx, "main", "orders", root, []model.EventPage{
		{Sequence: 0, Event: model.Payload{TypeURL: "OrderPlaced"}},
	}, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), pages[0].Sequence)

	next, err := s.NextSequence(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), next)

	read, err := s.Read(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Len(t, read, 1)
}

func TestMemoryEventStore_SequenceConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	root := uuid.New()

	_, err := s.Append(ctx, "main", "orders", root, []model.EventPage{{Sequence: 0}}, "")
	require.NoError(t, err)

	_, err = s.Append(ctx, "main", "orders", root, []model.EventPage{{Sequence: 0}}, "")
	require.Error(t, err)

	var conflict merr.SequenceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint32(1), conflict.Expected)
}

func TestMemoryEventStore_ForceAssignsNextSequence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	root := uuid.New()

	pages, err := s.Append(ctx, "main", "orders", root, []model.EventPage{
		{Force: true}, {Force: true},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), pages[0].Sequence)
	assert.Equal(t, uint32(1), pages[1].Sequence)
}

func TestMemoryEventStore_ReadRangeAndFrom(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	root := uuid.New()

	_, err := s.Append(ctx, "main", "orders", root, []model.EventPage{
		{Force: true}, {Force: true}, {Force: true}, {Force: true},
	}, "")
	require.NoError(t, err)

	from, err := s.ReadFrom(ctx, "main", "orders", root, 2)
	require.NoError(t, err)
	assert.Len(t, from, 2)

	rang, err := s.ReadRange(ctx, "main", "orders", root, 1, 3)
	require.NoError(t, err)
	assert.Len(t, rang, 2)
	assert.Equal(t, uint32(1), rang[0].Sequence)
}

func TestMemoryEventStore_FindByCorrelation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	r1, r2, r3 := uuid.New(), uuid.New(), uuid.New()

	_, err := s.Append(ctx, "main", "shipment", r1, []model.EventPage{{Force: true}}, "corr-x")
	require.NoError(t, err)
	_, err = s.Append(ctx, "main", "shipment", r2, []model.EventPage{{Force: true}}, "corr-x")
	require.NoError(t, err)
	_, err = s.Append(ctx, "main", "shipment", r3, []model.EventPage{{Force: true}}, "corr-y")
	require.NoError(t, err)

	ids, err := s.FindByCorrelation(ctx, "main", "shipment", "corr-x")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{r1, r2}, ids)
}

func TestMemoryEventStore_ListRootsAndDomains(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEventStore()
	root := uuid.New()

	_, err := s.Append(ctx, "main", "orders", root, []model.EventPage{{Force: true}}, "")
	require.NoError(t, err)

	roots, err := s.ListRoots(ctx, "main", "orders")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{root}, roots)

	domains, err := s.ListDomains(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, domains)
}

func TestMemorySnapshotStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySnapshotStore()
	root := uuid.New()

	got, err := s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, "main", "orders", root, model.Snapshot{Sequence: 3}))

	got, err = s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(3), got.Sequence)

	require.NoError(t, s.Put(ctx, "main", "orders", root, model.Snapshot{Sequence: 5}))
	got, _ = s.Get(ctx, "main", "orders", root)
	assert.Equal(t, uint32(5), got.Sequence)

	require.NoError(t, s.Delete(ctx, "main", "orders", root))
	got, err = s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Nil(t, got)
}
