package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCover_RoutingKey(t *testing.T) {
	root := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	c := Cover{Domain: "orders", Root: root, Edition: ""}

	assert.Equal(t, "main.orders.11111111111111111111111111111111", c.RoutingKey())

	c.Edition = "beta"
	assert.Equal(t, "beta.orders.11111111111111111111111111111111", c.RoutingKey())
}

func TestCover_Validate(t *testing.T) {
	assert.Error(t, Cover{}.Validate())
	assert.Error(t, Cover{Domain: "orders"}.Validate())
	assert.NoError(t, Cover{Domain: "orders", Root: uuid.New()}.Validate())
}

func TestEventBook_IsEmptyValid(t *testing.T) {
	assert.True(t, EventBook{}.IsEmptyValid())
	assert.False(t, EventBook{Pages: []EventPage{{Sequence: 0}}}.IsEmptyValid())
	assert.False(t, EventBook{Snapshot: &Snapshot{Sequence: 3}}.IsEmptyValid())
}

func TestEventBook_IsComplete(t *testing.T) {
	// starts at 0: complete
	b := EventBook{Pages: []EventPage{{Sequence: 0}, {Sequence: 1}}}
	assert.True(t, b.IsComplete())

	// starts at 5 with no snapshot: incomplete
	b = EventBook{Pages: []EventPage{{Sequence: 5}}}
	assert.False(t, b.IsComplete())

	// snapshot at 4, tail starting at 5: complete
	b = EventBook{Snapshot: &Snapshot{Sequence: 4}, Pages: []EventPage{{Sequence: 5}}}
	assert.True(t, b.IsComplete())

	// snapshot at 3, tail starting at 5: gap, incomplete
	b = EventBook{Snapshot: &Snapshot{Sequence: 3}, Pages: []EventPage{{Sequence: 5}}}
	assert.False(t, b.IsComplete())

	// empty-valid aggregate: complete
	assert.True(t, EventBook{}.IsComplete())
}

func TestEventBook_ValidateMonotonic(t *testing.T) {
	ok := EventBook{Pages: []EventPage{{Sequence: 0}, {Sequence: 1}, {Sequence: 2}}}
	assert.NoError(t, ok.ValidateMonotonic())

	gap := EventBook{Pages: []EventPage{{Sequence: 0}, {Sequence: 2}}}
	err := gap.ValidateMonotonic()
	require.Error(t, err)

	var nonMonotonic *NonMonotonicError
	require.ErrorAs(t, err, &nonMonotonic)
	assert.Equal(t, uint32(0), nonMonotonic.Prev)
	assert.Equal(t, uint32(2), nonMonotonic.Next)

	// force markers are skipped until assigned
	forced := EventBook{Pages: []EventPage{{Sequence: 0}, {Force: true}, {Force: true}}}
	assert.NoError(t, forced.ValidateMonotonic())
}

func TestEventBook_FirstLastSequence(t *testing.T) {
	b := EventBook{Pages: []EventPage{{Sequence: 3, CreatedAt: time.Now()}, {Sequence: 4}}}

	first, ok := b.FirstSequence()
	require.True(t, ok)
	assert.Equal(t, uint32(3), first)

	last, ok := b.LastSequence()
	require.True(t, ok)
	assert.Equal(t, uint32(4), last)

	onlySnapshot := EventBook{Snapshot: &Snapshot{Sequence: 7}}
	last, ok = onlySnapshot.LastSequence()
	require.True(t, ok)
	assert.Equal(t, uint32(7), last)

	_, ok = EventBook{}.LastSequence()
	assert.False(t, ok)
}

func TestDeriveCorrelationID_Deterministic(t *testing.T) {
	a := DeriveCorrelationID([]byte(`{"op":"place-order","id":1}`))
	b := DeriveCorrelationID([]byte(`{"op":"place-order","id":1}`))
	c := DeriveCorrelationID([]byte(`{"op":"place-order","id":2}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
