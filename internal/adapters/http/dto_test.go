package http

import (
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRequest_ToCommandBookDecodesBase64(t *testing.T) {
	root := uuid.New()
	req := dispatchRequest{
		Edition: "main",
		Pages: []commandPageRequest{
			{TypeURL: "PlaceOrder", Bytes: "aGVsbG8="}, // "hello"
		},
	}

	cmd, err := req.toCommandBook("orders", root)
	require.NoError(t, err)
	assert.Equal(t, "orders", cmd.Cover.Domain)
	assert.Equal(t, root, cmd.Cover.Root)
	require.Len(t, cmd.Pages, 1)
	assert.Equal(t, "hello", string(cmd.Pages[0].Command.Bytes))
}

func TestDispatchRequest_ToCommandBookRejectsBadBase64(t *testing.T) {
	req := dispatchRequest{Pages: []commandPageRequest{{Bytes: "not-base64!!"}}}
	_, err := req.toCommandBook("orders", uuid.New())
	assert.Error(t, err)
}

func TestNewEventBookResponse_MarksOffloadedPages(t *testing.T) {
	book := model.EventBook{
		Cover: model.Cover{Domain: "orders", Root: uuid.New(), Edition: "main"},
		Pages: []model.EventPage{
			{Sequence: 0, Event: model.Payload{TypeURL: "A", Bytes: []byte("x")}},
			{Sequence: 1, Event: model.Payload{TypeURL: "B"}, ExternalPayloadRef: &model.ExternalPayloadRef{}},
		},
	}

	resp := newEventBookResponse(book)
	require.Len(t, resp.Pages, 2)
	assert.False(t, resp.Pages[0].Offloaded)
	assert.NotEmpty(t, resp.Pages[0].Bytes)
	assert.True(t, resp.Pages[1].Offloaded)
	assert.Empty(t, resp.Pages[1].Bytes)
}
