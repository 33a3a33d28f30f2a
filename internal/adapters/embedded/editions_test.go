package embedded

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditionStore_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	es := OpenEditionStore(s)

	_, found, err := es.Get(ctx, "beta")
	require.NoError(t, err)
	assert.False(t, found)

	ed := model.Edition{
		Name:        "beta",
		Description: "pilot for the new interest-accrual rules",
		Divergences: []model.DivergencePoint{{Domain: "orders", Root: uuid.New(), Sequence: 7}},
	}
	require.NoError(t, es.Put(ctx, ed))

	got, found, err := es.Get(ctx, "beta")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ed.Name, got.Name)
	assert.Equal(t, ed.Description, got.Description)
	require.Len(t, got.Divergences, 1)
	assert.Equal(t, uint32(7), got.Divergences[0].Sequence)

	require.NoError(t, es.Put(ctx, model.Edition{Name: "gamma"}))

	all, err := es.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "beta", all[0].Name)
	assert.Equal(t, "gamma", all[1].Name)

	require.NoError(t, es.Delete(ctx, "beta"))

	_, found, err = es.Get(ctx, "beta")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEditionStore_DeleteMissingErrors(t *testing.T) {
	s := openTestStore(t)
	es := OpenEditionStore(s)

	err := es.Delete(context.Background(), "nope")
	require.Error(t, err)
}
