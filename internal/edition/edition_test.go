package edition

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager()

	ed, err := m.Create("beta", nil, "experiment")
	require.NoError(t, err)
	assert.Equal(t, "beta", ed.Name)

	got, ok := m.Get("beta")
	require.True(t, ok)
	assert.Equal(t, "experiment", got.Description)
}

func TestManager_CreateRejectsMainAndEmpty(t *testing.T) {
	m := NewManager()

	_, err := m.Create("", nil, "")
	assert.Error(t, err)

	_, err = m.Create(model.MainEdition, nil, "")
	assert.Error(t, err)
}

func TestManager_CreateRejectsDuplicate(t *testing.T) {
	m := NewManager()

	_, err := m.Create("beta", nil, "")
	require.NoError(t, err)

	_, err = m.Create("beta", nil, "")
	assert.Error(t, err)
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()

	_, err := m.Create("beta", nil, "")
	require.NoError(t, err)

	require.NoError(t, m.Delete("beta"))

	_, ok := m.Get("beta")
	assert.False(t, ok)

	assert.Error(t, m.Delete("beta"))
}

func seedMain(t *testing.T, main store.EventStore, domain string, root uuid.UUID, n int) {
	t.Helper()

	pages := make([]model.EventPage, n)
	for i := range pages {
		pages[i] = model.EventPage{Force: true, Event: model.Payload{TypeURL: "MainEvent"}}
	}

	_, err := main.Append(context.Background(), model.MainEdition, domain, root, pages, "")
	require.NoError(t, err)
}

func TestCompositeEventStore_ReadsMainBelowDivergenceAndBranchAtOrAbove(t *testing.T) {
	main := store.NewMemoryEventStore()
	branch := store.NewMemoryEventStore()

	root := uuid.New()
	seedMain(t, main, "orders", root, 3) // sequences 0,1,2

	divergences := []model.DivergencePoint{{Domain: "orders", Root: root, Sequence: 3}}
	ces := NewCompositeEventStore("beta", main, branch, divergences)

	_, err := ces.Append(context.Background(), "beta", "orders", root, []model.EventPage{{Force: true, Event: model.Payload{TypeURL: "BranchEvent"}}}, "")
	require.NoError(t, err)

	pages, err := ces.ReadFrom(context.Background(), "beta", "orders", root, 0)
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Equal(t, "MainEvent", pages[0].Event.TypeURL)
	assert.Equal(t, "MainEvent", pages[2].Event.TypeURL)
	assert.Equal(t, "BranchEvent", pages[3].Event.TypeURL)
	assert.Equal(t, uint32(3), pages[3].Sequence)
}

func TestCompositeEventStore_UndivergedAggregateReadsOnlyBranch(t *testing.T) {
	main := store.NewMemoryEventStore()
	branch := store.NewMemoryEventStore()

	root := uuid.New()
	seedMain(t, main, "orders", root, 2) // irrelevant: no divergence recorded for this root

	ces := NewCompositeEventStore("beta", main, branch, nil)

	_, err := ces.Append(context.Background(), "beta", "orders", root, []model.EventPage{{Force: true, Event: model.Payload{TypeURL: "BranchOnly"}}}, "")
	require.NoError(t, err)

	pages, err := ces.ReadFrom(context.Background(), "beta", "orders", root, 0)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "BranchOnly", pages[0].Event.TypeURL)
}

func TestCompositeEventStore_NextSequenceContinuesFromDivergencePoint(t *testing.T) {
	main := store.NewMemoryEventStore()
	branch := store.NewMemoryEventStore()

	root := uuid.New()
	seedMain(t, main, "orders", root, 5)

	divergences := []model.DivergencePoint{{Domain: "orders", Root: root, Sequence: 5}}
	ces := NewCompositeEventStore("beta", main, branch, divergences)

	next, err := ces.NextSequence(context.Background(), "beta", "orders", root)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), next)
}

func TestRouter_RoutesMainAndMountedEditions(t *testing.T) {
	main := store.NewMemoryEventStore()
	router := NewRouter(main)

	root := uuid.New()
	_, err := router.Append(context.Background(), "", "orders", root, []model.EventPage{{Force: true, Event: model.Payload{TypeURL: "OnMain"}}}, "")
	require.NoError(t, err)

	branch := store.NewMemoryEventStore()
	ces := NewCompositeEventStore("beta", main, branch, nil)
	router.Mount("beta", ces)

	_, err = router.Append(context.Background(), "beta", "orders", root, []model.EventPage{{Force: true, Event: model.Payload{TypeURL: "OnBeta"}}}, "")
	require.NoError(t, err)

	mainPages, err := router.ReadFrom(context.Background(), "", "orders", root, 0)
	require.NoError(t, err)
	require.Len(t, mainPages, 1)

	betaPages, err := router.ReadFrom(context.Background(), "beta", "orders", root, 0)
	require.NoError(t, err)
	require.Len(t, betaPages, 1)
	assert.Equal(t, "OnBeta", betaPages[0].Event.TypeURL)
}

func TestRouter_UnmountedEditionIsNotFound(t *testing.T) {
	router := NewRouter(store.NewMemoryEventStore())

	_, err := router.ReadFrom(context.Background(), "gamma", "orders", uuid.New(), 0)
	var nf merr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
