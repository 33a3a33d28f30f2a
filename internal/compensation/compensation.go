// Package compensation implements the compensation engine (spec §4.8):
// when a command carrying SagaOrigin is rejected, the framework builds
// a RejectionNotification and delivers it to the saga/PM named by the
// origin. Grounded on benjaminabbitt-angzarr's CommandRejectedError
// (examples/go/angzarr/aggregate_handler.go), which carries the same
// rejected-command-plus-reason shape this engine routes on.
package compensation

import (
	"context"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
)

// Handler is implemented by anything a SagaCommandOrigin can name:
// internal/saga.Orchestrator and internal/processmanager.Orchestrator
// both satisfy this.
type Handler interface {
	Name() string
	HandleRejection(ctx context.Context, notification model.RejectionNotification) error
}

// Engine is the framework-level router from a rejected command back to
// its originating saga/PM, keyed by SagaCommandOrigin.SagaName (spec
// §4.8). Registration happens once at wiring time; routing happens on
// every rejected command carrying an origin.
type Engine struct {
	handlers map[string]Handler
	logger   mlog.Logger
}

// NewEngine builds an empty Engine.
func NewEngine(logger mlog.Logger) *Engine {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Engine{handlers: make(map[string]Handler), logger: logger}
}

// Register adds h under its own name, returning the Engine for chaining.
func (e *Engine) Register(h Handler) *Engine {
	e.handlers[h.Name()] = h
	return e
}

// Notify builds a RejectionNotification for a rejected command and
// routes it to the saga/PM named by its SagaOrigin, if any. A command
// with no SagaOrigin has nothing to compensate and is a no-op. A
// command whose origin names a saga/PM that isn't registered is
// dropped with a warning: compensation is best-effort (spec §4.8), not
// a delivery guarantee.
func (e *Engine) Notify(ctx context.Context, rejected model.CommandBook, reason string) error {
	if len(rejected.Pages) == 0 || rejected.Pages[0].SagaOrigin == nil {
		return nil
	}

	origin := *rejected.Pages[0].SagaOrigin

	handler, ok := e.handlers[origin.SagaName]
	if !ok {
		e.logger.Warnf("compensation: no handler registered for %q, dropping rejection of %s/%s", origin.SagaName, rejected.Cover.Domain, rejected.Cover.Root)
		return nil
	}

	notification := model.RejectionNotification{
		RejectedCommand:     rejected,
		Reason:              reason,
		SourceAggregate:     origin.TriggeringCover,
		SourceEventSequence: origin.TriggeringEventSequence,
		Origin:              origin,
	}

	return handler.HandleRejection(ctx, notification)
}
