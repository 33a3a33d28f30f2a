package upcast

import (
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRouter_PassesThroughUnmatched(t *testing.T) {
	r := NewRouter("orders")
	pages := []model.EventPage{{Event: model.Payload{TypeURL: "type.googleapis.com/orders.OrderShipped"}}}

	out := r.Upcast(pages)
	assert.Equal(t, pages, out)
}

func TestRouter_SingleStepUpcast(t *testing.T) {
	r := NewRouter("orders").On("OrderPlacedV1", func(old model.Payload) model.Payload {
		return model.Payload{TypeURL: "type.googleapis.com/orders.OrderPlacedV2", Bytes: old.Bytes}
	})

	out := r.Upcast([]model.EventPage{{Event: model.Payload{TypeURL: "type.googleapis.com/orders.OrderPlacedV1", Bytes: []byte("x")}}})

	assert.Equal(t, "type.googleapis.com/orders.OrderPlacedV2", out[0].Event.TypeURL)
	assert.Equal(t, []byte("x"), out[0].Event.Bytes)
}

func TestRouter_ChainsMultipleSteps(t *testing.T) {
	r := NewRouter("orders").
		On("OrderPlacedV1", func(old model.Payload) model.Payload {
			return model.Payload{TypeURL: "OrderPlacedV2", Bytes: old.Bytes}
		}).
		On("OrderPlacedV2", func(old model.Payload) model.Payload {
			return model.Payload{TypeURL: "OrderPlacedV3", Bytes: old.Bytes}
		})

	out := r.Upcast([]model.EventPage{{Event: model.Payload{TypeURL: "OrderPlacedV1"}}})
	assert.Equal(t, "OrderPlacedV3", out[0].Event.TypeURL)
}

func TestRouter_OnlyMatchesBySuffix(t *testing.T) {
	r := NewRouter("orders").On("V1", func(old model.Payload) model.Payload {
		return model.Payload{TypeURL: "V2"}
	})

	out := r.Upcast([]model.EventPage{{Event: model.Payload{TypeURL: "somethingElseV2"}}})
	assert.Equal(t, "somethingElseV2", out[0].Event.TypeURL)
}

func TestChain_RoutesByDomain(t *testing.T) {
	orders := NewRouter("orders").On("V1", func(old model.Payload) model.Payload {
		return model.Payload{TypeURL: "V2"}
	})

	chain := NewChain().Register(orders)

	out := chain.Upcast("orders", []model.EventPage{{Event: model.Payload{TypeURL: "V1"}}})
	assert.Equal(t, "V2", out[0].Event.TypeURL)

	unchanged := chain.Upcast("billing", []model.EventPage{{Event: model.Payload{TypeURL: "V1"}}})
	assert.Equal(t, "V1", unchanged[0].Event.TypeURL)
}
