package repair

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairer_PassesThroughCompleteBook(t *testing.T) {
	repo := repository.New(store.NewMemoryEventStore(), store.NewMemorySnapshotStore(), repository.DefaultOptions())
	r := New(repo, mlog.NopLogger{})

	book := model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}}
	out, err := r.Repair(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, book, out)
}

func TestRepairer_RefetchesPartialBook(t *testing.T) {
	ctx := context.Background()
	es := store.NewMemoryEventStore()
	ss := store.NewMemorySnapshotStore()
	repo := repository.New(es, ss, repository.DefaultOptions())
	root := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := repo.Put(ctx, "main", model.EventBook{
			Cover: model.Cover{Domain: "orders", Root: root},
			Pages: []model.EventPage{{Force: true}},
		})
		require.NoError(t, err)
	}

	r := New(repo, mlog.NopLogger{})

	partial := model.EventBook{
		Cover: model.Cover{Domain: "orders", Root: root, Edition: "main", CorrelationID: "corr-1"},
		Pages: []model.EventPage{{Sequence: 2}}, // starts at 2, no snapshot: incomplete
	}

	out, err := r.Repair(ctx, partial)
	require.NoError(t, err)
	assert.Len(t, out.Pages, 3)
	assert.Equal(t, "corr-1", out.Cover.CorrelationID)
}
