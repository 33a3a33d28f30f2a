package compensation

import (
	"context"
	"errors"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	name     string
	received *model.RejectionNotification
	err      error
}

func (f *fakeHandler) Name() string { return f.name }
func (f *fakeHandler) HandleRejection(ctx context.Context, n model.RejectionNotification) error {
	f.received = &n
	return f.err
}

func rejectedCommand(sagaName string) model.CommandBook {
	return model.CommandBook{
		Cover: model.Cover{Domain: "billing", Root: uuid.New()},
		Pages: []model.CommandPage{{
			SagaOrigin: &model.SagaCommandOrigin{
				SagaName:                sagaName,
				TriggeringCover:         model.Cover{Domain: "orders", Root: uuid.New()},
				TriggeringEventSequence: 3,
			},
		}},
	}
}

func TestEngine_RoutesToRegisteredHandler(t *testing.T) {
	h := &fakeHandler{name: "order-to-billing"}
	e := NewEngine(mlog.NopLogger{}).Register(h)

	cmd := rejectedCommand("order-to-billing")
	require.NoError(t, e.Notify(context.Background(), cmd, "insufficient funds"))

	require.NotNil(t, h.received)
	assert.Equal(t, "insufficient funds", h.received.Reason)
	assert.Equal(t, cmd, h.received.RejectedCommand)
	assert.Equal(t, uint32(3), h.received.SourceEventSequence)
	assert.Equal(t, "orders", h.received.SourceAggregate.Domain)
}

func TestEngine_NoOriginIsNoOp(t *testing.T) {
	h := &fakeHandler{name: "order-to-billing"}
	e := NewEngine(mlog.NopLogger{}).Register(h)

	cmd := model.CommandBook{Cover: model.Cover{Domain: "billing", Root: uuid.New()}, Pages: []model.CommandPage{{}}}
	require.NoError(t, e.Notify(context.Background(), cmd, "declined"))
	assert.Nil(t, h.received)
}

func TestEngine_UnregisteredSagaIsDroppedNotError(t *testing.T) {
	e := NewEngine(mlog.NopLogger{})

	cmd := rejectedCommand("unknown-saga")
	require.NoError(t, e.Notify(context.Background(), cmd, "declined"))
}

func TestEngine_PropagatesHandlerError(t *testing.T) {
	h := &fakeHandler{name: "order-to-billing", err: errors.New("compensation boom")}
	e := NewEngine(mlog.NopLogger{}).Register(h)

	err := e.Notify(context.Background(), rejectedCommand("order-to-billing"), "declined")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compensation boom")
}
