package businessclient

import (
	"context"
	"errors"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess_Invoke(t *testing.T) {
	h := func(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
		return BusinessResponse{NewEvents: []model.EventPage{{Event: model.Payload{TypeURL: "X"}}}}, nil
	}

	c := NewInProcess(h)
	resp, err := c.Invoke(context.Background(), ContextualCommand{})
	require.NoError(t, err)
	assert.False(t, resp.IsRevoked())
	assert.Len(t, resp.NewEvents, 1)
}

func TestInProcess_PropagatesRevocation(t *testing.T) {
	h := func(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
		return BusinessResponse{Revocation: &Revocation{Reason: "already shipped"}}, nil
	}

	resp, err := NewInProcess(h).Invoke(context.Background(), ContextualCommand{})
	require.NoError(t, err)
	assert.True(t, resp.IsRevoked())
	assert.Equal(t, "already shipped", resp.Revocation.Reason)
}

func TestInProcess_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	h := func(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
		return BusinessResponse{}, boom
	}

	_, err := NewInProcess(h).Invoke(context.Background(), ContextualCommand{})
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_LookupRegisteredAndUnregistered(t *testing.T) {
	r := NewRegistry().RegisterHandler("orders", func(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
		return BusinessResponse{}, nil
	})

	c, ok := r.Lookup("orders")
	assert.True(t, ok)
	assert.NotNil(t, c)

	_, ok = r.Lookup("billing")
	assert.False(t, ok)
}
