// Package businessclient defines the contract the aggregate pipeline
// uses to invoke user-provided business logic (spec §4.5 step 6), plus
// an in-process implementation for handlers registered directly inside
// this runtime and a gRPC client for out-of-process aggregate services.
// Grounded on benjaminabbitt-angzarr's client/go AggregateHandler/
// CommandRouter split between transport and domain logic.
package businessclient

import (
	"context"

	"github.com/LerianStudio/midaz-flow/internal/model"
)

// ContextualCommand is what a business-logic handler receives: the
// prior events for the aggregate (already upcast) plus the command
// to apply.
type ContextualCommand struct {
	PriorEvents model.EventBook
	Command     model.CommandBook
}

// BusinessResponse is either a set of new events and an optional
// snapshot, or an explicit Revocation — never both.
type BusinessResponse struct {
	NewEvents     []model.EventPage
	SnapshotState *model.Payload
	Revocation    *Revocation
}

// Revocation is a handler's explicit rejection of a command, distinct
// from a SequenceConflict: the command was well-formed but the
// business rule it represents does not hold (spec §4.5 step 7).
type Revocation struct {
	Reason string
}

// IsRevoked reports whether r represents a business-rule revocation
// rather than applied events.
func (r BusinessResponse) IsRevoked() bool { return r.Revocation != nil }

// Handler is the function signature of an in-process business-logic
// handler for one domain.
type Handler func(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error)

// Client is what the pipeline depends on: a single entry point per
// domain, oblivious to whether the handler lives in-process or behind
// a gRPC aggregate service.
type Client interface {
	Invoke(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error)
}

// InProcess dispatches directly to a registered Handler, for
// aggregates compiled into this binary.
type InProcess struct {
	handler Handler
}

// NewInProcess wraps h as a Client.
func NewInProcess(h Handler) *InProcess {
	return &InProcess{handler: h}
}

func (c *InProcess) Invoke(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
	return c.handler(ctx, cmd)
}

// Registry resolves a Client by domain, so the pipeline can stay
// ignorant of how many aggregate domains are registered.
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register binds domain to client.
func (r *Registry) Register(domain string, client Client) *Registry {
	r.clients[domain] = client
	return r
}

// RegisterHandler is a convenience wrapper for in-process handlers.
func (r *Registry) RegisterHandler(domain string, h Handler) *Registry {
	return r.Register(domain, NewInProcess(h))
}

// Lookup returns the Client registered for domain, or (nil, false).
func (r *Registry) Lookup(domain string) (Client, bool) {
	c, ok := r.clients[domain]
	return c, ok
}
