// Package processmanager implements the process-manager orchestrator
// (spec §4.7): a PM is itself an aggregate under a dedicated domain
// that subscribes to trigger events, merges causally-related trigger
// state by correlation_id, loads its own state, prepares/fetches
// additional destinations, and emits both commands and its own
// process events. Grounded on benjaminabbitt-angzarr's
// ProcessManagerHandler (Prepare/Handle/WithRevocationHandler split,
// client/go/handler.go).
package processmanager

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
	"github.com/google/uuid"
)

// pmNamespace is the fixed UUIDv5 namespace used to derive a PM's own
// aggregate root from a correlation id, the same derivation style as
// model.DeriveCorrelationID, so the same workflow instance always maps
// to the same PM aggregate even before it has appended anything.
var pmNamespace = uuid.MustParse("2f6a0a52-7b3a-4e7a-9c8e-0a4b2e6d7f11")

func deriveRootFromCorrelation(domain, correlationID string) uuid.UUID {
	return uuid.NewSHA1(pmNamespace, []byte(domain+"/"+correlationID))
}

// HandleResult is what ProcessManager.Handle produces: commands to
// dispatch plus the PM's own new process events.
type HandleResult struct {
	Commands      []model.CommandBook
	ProcessEvents []model.EventPage
}

// RevocationResult is what ProcessManager.HandleRevocation produces:
// optional PM events to persist, plus an optional system-level
// revocation note (spec §4.8).
type RevocationResult struct {
	ProcessEvents    []model.EventPage
	RevocationReason string
}

// ProcessManager is the user-provided PM business logic.
type ProcessManager interface {
	Name() string
	// Domain is the PM's own aggregate domain (where its ProcessEvents
	// are persisted).
	Domain() string
	// TriggerDomain is the domain this PM subscribes to.
	TriggerDomain() string
	Prepare(ctx context.Context, trigger, pmState model.EventBook) ([]model.Cover, error)
	Handle(ctx context.Context, trigger, pmState model.EventBook, destinations map[string]model.EventBook) (HandleResult, error)
	// HandleRevocation responds to a rejected command this PM issued
	// (spec §4.8).
	HandleRevocation(ctx context.Context, notification model.RejectionNotification, pmState model.EventBook) (RevocationResult, error)
}

// Orchestrator drives one ProcessManager's trigger-event handling.
type Orchestrator struct {
	pm       ProcessManager
	pipeline *pipeline.Pipeline
	repo     *repository.Repository
	retry    mretry.Config
	logger   mlog.Logger
}

// New builds an Orchestrator for pm.
func New(pm ProcessManager, p *pipeline.Pipeline, repo *repository.Repository, retry mretry.Config, logger mlog.Logger) *Orchestrator {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Orchestrator{pm: pm, pipeline: p, repo: repo, retry: retry, logger: logger}
}

// Handle runs one delivered trigger EventBook through the PM flow
// (spec §4.7).
func (o *Orchestrator) Handle(ctx context.Context, trigger model.EventBook) error {
	if trigger.Cover.CorrelationID == "" {
		return nil // PMs require correlation (spec §4.7 step 1)
	}

	mergedTrigger, err := o.loadTriggerByCorrelation(ctx, trigger)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "load trigger state", Err: err}
	}

	pmState, err := o.loadPMState(ctx, trigger.Cover.CorrelationID)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "load pm state", Err: err}
	}

	covers, err := o.pm.Prepare(ctx, mergedTrigger, pmState)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "prepare failed", Err: err}
	}

	destinations := make(map[string]model.EventBook, len(covers))

	for _, c := range covers {
		book, err := o.repo.Get(ctx, c.Edition, c.Domain, c.Root)
		if err != nil {
			return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "fetch destination " + c.Domain, Err: err}
		}

		destinations[c.Domain+"/"+c.Root.String()] = book
	}

	result, err := o.pm.Handle(ctx, mergedTrigger, pmState, destinations)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "handle failed", Err: err}
	}

	if len(result.ProcessEvents) > 0 {
		if err := o.persistPMEvents(ctx, trigger.Cover.CorrelationID, result.ProcessEvents); err != nil {
			return err
		}
	}

	for _, cmd := range result.Commands {
		for i := range cmd.Pages {
			if cmd.Pages[i].SagaOrigin == nil {
				cmd.Pages[i].SagaOrigin = &model.SagaCommandOrigin{
					SagaName:                o.pm.Name(),
					TriggeringCover:         trigger.Cover,
					TriggeringEventSequence: lastSequence(trigger),
				}
			}
		}

		_, err := o.pipeline.Dispatch(ctx, cmd, pipeline.Options{})
		if err == nil {
			continue
		}

		var revoked merr.RevocationError
		if errors.As(err, &revoked) {
			// Fallback self-compensation for when no compensation.Engine
			// is wired into the pipeline; see saga.Orchestrator.dispatch
			// for the matching comment. HandleRevocation is idempotent:
			// it only appends PM events and emits further commands.
			notification := model.RejectionNotification{
				RejectedCommand: cmd,
				Reason:          revoked.Reason,
			}
			if origin := cmd.Pages[0].SagaOrigin; origin != nil {
				notification.SourceAggregate = origin.TriggeringCover
				notification.SourceEventSequence = origin.TriggeringEventSequence
				notification.Origin = *origin
			}

			if cerr := o.HandleRevocation(ctx, notification); cerr != nil {
				o.logger.Errorf("pm %q: compensation failed for %s: %v", o.pm.Name(), cmd.Cover.Domain, cerr)
			}

			continue
		}

		o.logger.Errorf("pm %q: command to %s rejected or failed: %v", o.pm.Name(), cmd.Cover.Domain, err)
	}

	return nil
}

// Name identifies this process manager for compensation.Engine
// registration (spec §4.8).
func (o *Orchestrator) Name() string { return o.pm.Name() }

// HandleRejection implements compensation.Handler.
func (o *Orchestrator) HandleRejection(ctx context.Context, notification model.RejectionNotification) error {
	return o.HandleRevocation(ctx, notification)
}

// HandleRevocation implements the PM half of compensation (spec
// §4.8): reload PM state by correlation, call the PM's revocation
// handler, and persist any events it emits.
func (o *Orchestrator) HandleRevocation(ctx context.Context, notification model.RejectionNotification) error {
	pmState, err := o.loadPMState(ctx, notification.RejectedCommand.Cover.CorrelationID)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "load pm state for revocation", Err: err}
	}

	result, err := o.pm.HandleRevocation(ctx, notification, pmState)
	if err != nil {
		return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "handle revocation failed", Err: err}
	}

	if len(result.ProcessEvents) == 0 {
		return nil
	}

	return o.persistPMEvents(ctx, notification.RejectedCommand.Cover.CorrelationID, result.ProcessEvents)
}

// persistPMEvents appends events to the PM's own domain, assigning
// each an explicit sequence starting from the PM aggregate's current
// next_sequence. A concurrent invocation for the same correlation can
// race this append, in which case the store reports SequenceConflict
// and this retries with the freshly observed next_sequence, using the
// same exponential-backoff budget as the aggregate pipeline (spec
// §4.7 step 7).
func (o *Orchestrator) persistPMEvents(ctx context.Context, correlationID string, events []model.EventPage) error {
	root, err := o.pmRootForCorrelation(ctx, correlationID)
	if err != nil {
		return err
	}

	var lastErr error

	for attempt := 0; attempt < o.retry.MaxRetries; attempt++ {
		next, err := o.repo.NextSequence(ctx, "", o.pm.Domain(), root)
		if err != nil {
			return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "read pm next sequence", Err: err}
		}

		pages := make([]model.EventPage, len(events))
		for i, e := range events {
			e.Sequence = next + uint32(i)
			pages[i] = e
		}

		book := model.EventBook{
			Cover: model.Cover{Domain: o.pm.Domain(), Root: root, CorrelationID: correlationID},
			Pages: pages,
		}

		if _, err := o.repo.Put(ctx, book.Cover.Edition, book); err == nil {
			return nil
		} else {
			var conflict merr.SequenceConflictError
			if !errors.As(err, &conflict) {
				return merr.InternalError{EntityType: "pm:" + o.pm.Name(), Message: "persist pm events", Err: err}
			}

			lastErr = err
		}

		if attempt < o.retry.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.retry.Backoff(attempt + 1)):
			}
		}
	}

	return merr.AbortedError{EntityType: "pm:" + o.pm.Name(), Attempts: o.retry.MaxRetries, Err: lastErr}
}

// pmRootForCorrelation derives a stable PM aggregate root for a
// workflow instance from its correlation id, so repeated deliveries of
// the same correlation land on the same PM aggregate.
func (o *Orchestrator) pmRootForCorrelation(ctx context.Context, correlationID string) (uuid.UUID, error) {
	roots, err := o.repo.FindByCorrelation(ctx, "", o.pm.Domain(), correlationID)
	if err != nil {
		return uuid.UUID{}, err
	}

	if len(roots) > 0 {
		return roots[0], nil
	}

	return deriveRootFromCorrelation(o.pm.Domain(), correlationID), nil
}

func (o *Orchestrator) loadTriggerByCorrelation(ctx context.Context, trigger model.EventBook) (model.EventBook, error) {
	roots, err := o.repo.FindByCorrelation(ctx, trigger.Cover.Edition, o.pm.TriggerDomain(), trigger.Cover.CorrelationID)
	if err != nil {
		return model.EventBook{}, err
	}

	merged := trigger

	for _, root := range roots {
		if root == trigger.Cover.Root {
			continue
		}

		book, err := o.repo.Get(ctx, trigger.Cover.Edition, o.pm.TriggerDomain(), root)
		if err != nil {
			return model.EventBook{}, err
		}

		merged.Pages = append(merged.Pages, book.Pages...)
	}

	return merged, nil
}

func (o *Orchestrator) loadPMState(ctx context.Context, correlationID string) (model.EventBook, error) {
	roots, err := o.repo.FindByCorrelation(ctx, "", o.pm.Domain(), correlationID)
	if err != nil {
		return model.EventBook{}, err
	}

	if len(roots) == 0 {
		return model.EventBook{}, nil // new workflow: no PM state yet
	}

	return o.repo.Get(ctx, "", o.pm.Domain(), roots[0])
}

func lastSequence(book model.EventBook) uint32 {
	if len(book.Pages) == 0 {
		return 0
	}

	return book.Pages[len(book.Pages)-1].Sequence
}
