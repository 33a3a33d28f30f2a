package sqlite

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root := uuid.New()

	pages := []model.EventPage{
		{Force: true, Event: model.Payload{TypeURL: "OrderPlaced", Bytes: []byte("a")}},
		{Force: true, Event: model.Payload{TypeURL: "OrderShipped", Bytes: []byte("b")}},
	}

	assigned, err := s.Append(ctx, "main", "orders", root, pages, "corr-1")
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	assert.Equal(t, uint32(0), assigned[0].Sequence)
	assert.Equal(t, uint32(1), assigned[1].Sequence)

	got, err := s.Read(ctx, "main", "orders", root)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "OrderPlaced", got[0].Event.TypeURL)

	roots, err := s.FindByCorrelation(ctx, "main", "orders", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{root}, roots)

	domains, err := s.ListDomains(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, domains)
}

func TestStore_AppendRejectsSequenceConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root := uuid.New()

	_, err := s.Append(ctx, "main", "orders", root, []model.EventPage{{Sequence: 5, Event: model.Payload{TypeURL: "X"}}}, "")
	var conflict merr.SequenceConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestStore_ReadRangeIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root := uuid.New()

	pages := make([]model.EventPage, 5)
	for i := range pages {
		pages[i] = model.EventPage{Force: true, Event: model.Payload{TypeURL: "E"}}
	}

	_, err := s.Append(ctx, "main", "orders", root, pages, "")
	require.NoError(t, err)

	got, err := s.ReadRange(ctx, "main", "orders", root, 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].Sequence)
	assert.Equal(t, uint32(2), got[1].Sequence)
}

func TestStore_SnapshotPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root := uuid.New()

	snap, err := s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, s.Put(ctx, "main", "orders", root, model.Snapshot{Sequence: 3, State: model.Payload{TypeURL: "State"}}))

	snap, err = s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint32(3), snap.Sequence)

	require.NoError(t, s.Delete(ctx, "main", "orders", root))

	snap, err = s.Get(ctx, "main", "orders", root)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
