// Package pipeline implements the aggregate command pipeline (spec
// §4.5): parse/validate a CommandBook, load prior state, upcast it,
// invoke business logic, persist new events with bounded retry on
// sequence conflict, snapshot, publish, and optionally run synchronous
// in-process projections. Grounded on benjaminabbitt-angzarr's
// CommandRouter.Dispatch for the validate/invoke/error-mapping shape
// and original_source/src/pipeline for the retry-on-conflict loop.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/businessclient"
	"github.com/LerianStudio/midaz-flow/internal/compensation"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/offload"
	"github.com/LerianStudio/midaz-flow/internal/projector"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/internal/upcast"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
)

// Response is the pipeline's output: the new events actually persisted
// (sequences resolved), any compensating/revocation note, and the
// outputs of synchronous projections the caller opted into.
type Response struct {
	Book               model.EventBook
	Revoked            bool
	RevocationReason   string
	SyncProjections    []projector.Output
	PriorEventBook     *model.EventBook // populated on a fast-path sequence mismatch (spec §4.5 step 3)
}

// Options configures one pipeline invocation.
type Options struct {
	// Synchronous requests in-process projector handlers run before the
	// response is returned (spec §4.5 step 11).
	Synchronous bool
	// DryRun reads temporal state instead of the snapshot-optimized
	// current state, and skips persist/publish entirely.
	DryRun bool
}

// Pipeline wires together the layers spec §4.5 names.
type Pipeline struct {
	repo        *repository.Repository
	bus         bus.EventBus
	clients     *businessclient.Registry
	upcasters   *upcast.Chain
	projector   *projector.Driver
	compensator *compensation.Engine
	offloader   *offload.Offloader
	retry       mretry.Config
	logger      mlog.Logger
}

// New builds a Pipeline. upcasters and proj may be nil. Call
// WithCompensation to wire compensation routing (spec §4.8); without
// it, a rejected saga/PM command still surfaces RevocationError to its
// immediate caller, it just isn't routed back to the origin.
func New(repo *repository.Repository, eventBus bus.EventBus, clients *businessclient.Registry, upcasters *upcast.Chain, proj *projector.Driver, retry mretry.Config, logger mlog.Logger) *Pipeline {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Pipeline{repo: repo, bus: eventBus, clients: clients, upcasters: upcasters, projector: proj, retry: retry, logger: logger}
}

// WithCompensation wires a compensation engine into the pipeline and
// returns it for chaining at construction time.
func (p *Pipeline) WithCompensation(engine *compensation.Engine) *Pipeline {
	p.compensator = engine
	return p
}

// WithOffload wires a payload offloader into the pipeline (spec
// §4.12): new events are offloaded before persist/publish when they
// exceed the offloader's threshold.
func (p *Pipeline) WithOffload(o *offload.Offloader) *Pipeline {
	p.offloader = o
	return p
}

// Dispatch runs one CommandBook through the full pipeline (spec §4.5).
func (p *Pipeline) Dispatch(ctx context.Context, cmd model.CommandBook, opts Options) (Response, error) {
	if err := cmd.Cover.Validate(); err != nil {
		return Response{}, merr.ValidationError{Message: err.Error()}
	}

	if len(cmd.Pages) == 0 {
		return Response{}, merr.ValidationError{Message: "command book must carry at least one page"}
	}

	cmd.Cover.Edition = model.NormalizeEdition(cmd.Cover.Edition)

	if cmd.Cover.CorrelationID == "" {
		cmd.Cover.CorrelationID = model.DeriveCorrelationID(canonicalize(cmd))
	}

	client, ok := p.clients.Lookup(cmd.Cover.Domain)
	if !ok {
		return Response{}, merr.NotFoundError{EntityType: "business handler", Message: "no handler registered for domain " + cmd.Cover.Domain}
	}

	// Fast-path pre-validation: explicit expected sequence with
	// auto-resequence disabled fails immediately on mismatch rather than
	// reaching the retry loop (spec §4.5 step 3).
	first := cmd.Pages[0]
	if !first.AutoResequence {
		next, err := p.repo.NextSequence(ctx, cmd.Cover.Edition, cmd.Cover.Domain, cmd.Cover.Root)
		if err != nil {
			return Response{}, err
		}

		if next != first.ExpectedSequence {
			prior, loadErr := p.repo.Get(ctx, cmd.Cover.Edition, cmd.Cover.Domain, cmd.Cover.Root)
			if loadErr != nil {
				return Response{}, loadErr
			}

			return Response{PriorEventBook: &prior}, merr.SequenceConflictError{EntityType: cmd.Cover.Domain, Expected: first.ExpectedSequence, Actual: next}
		}
	}

	var lastErr error

	attempts := p.retry.MaxRetries
	if opts.DryRun {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := p.attempt(ctx, cmd, client, opts)
		if err == nil {
			return resp, nil
		}

		var conflict merr.SequenceConflictError
		if !errors.As(err, &conflict) || !first.AutoResequence || opts.DryRun {
			return Response{}, err
		}

		lastErr = err

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(p.retry.Backoff(attempt + 1)):
			}
		}
	}

	return Response{}, merr.AbortedError{EntityType: cmd.Cover.Domain, Attempts: attempts, Err: lastErr}
}

func (p *Pipeline) attempt(ctx context.Context, cmd model.CommandBook, client businessclient.Client, opts Options) (Response, error) {
	prior, err := p.loadPrior(ctx, cmd, opts)
	if err != nil {
		return Response{}, err
	}

	if p.upcasters != nil {
		prior.Pages = p.upcasters.Upcast(cmd.Cover.Domain, prior.Pages)
	}

	bresp, err := client.Invoke(ctx, businessclient.ContextualCommand{PriorEvents: prior, Command: cmd})
	if err != nil {
		return Response{}, err
	}

	if bresp.IsRevoked() {
		if p.compensator != nil {
			if err := p.compensator.Notify(ctx, cmd, bresp.Revocation.Reason); err != nil {
				p.logger.Errorf("pipeline: compensation routing failed for %s/%s: %v", cmd.Cover.Domain, cmd.Cover.Root, err)
			}
		}

		return Response{Revoked: true, RevocationReason: bresp.Revocation.Reason},
			merr.RevocationError{Reason: bresp.Revocation.Reason}
	}

	if opts.DryRun {
		return Response{Book: model.EventBook{Cover: cmd.Cover, Pages: bresp.NewEvents}}, nil
	}

	newEvents := bresp.NewEvents

	if p.offloader != nil {
		newEvents, err = p.offloader.OffloadPages(ctx, newEvents)
		if err != nil {
			return Response{}, err
		}
	}

	book := model.EventBook{
		Cover:         cmd.Cover,
		Pages:         newEvents,
		Snapshot:      prior.Snapshot,
		SnapshotState: bresp.SnapshotState,
	}

	persisted, err := p.repo.Put(ctx, cmd.Cover.Edition, book)
	if err != nil {
		return Response{}, err
	}

	publishBook := persisted
	if _, pubErr := p.bus.Publish(ctx, publishBook); pubErr != nil {
		p.logger.Errorf("pipeline: publish failed for %s/%s: %v", cmd.Cover.Domain, cmd.Cover.Root, pubErr)
	}

	resp := Response{Book: persisted}

	if opts.Synchronous && p.projector != nil {
		outputs, err := p.projector.DispatchSync(ctx, persisted)
		if err != nil {
			p.logger.Errorf("pipeline: synchronous projection failed for %s/%s: %v", cmd.Cover.Domain, cmd.Cover.Root, err)
		}

		resp.SyncProjections = outputs
	}

	return resp, nil
}

// loadPrior reads prior state via the snapshot-optimized path in the
// normal flow. Dry-run mode uses the temporal read instead: the full
// event log up to now, ignoring snapshots (spec §4.5 step 4).
func (p *Pipeline) loadPrior(ctx context.Context, cmd model.CommandBook, opts Options) (model.EventBook, error) {
	if opts.DryRun {
		return p.repo.GetTemporalByTime(ctx, cmd.Cover.Edition, cmd.Cover.Domain, cmd.Cover.Root, time.Now().UTC())
	}

	return p.repo.Get(ctx, cmd.Cover.Edition, cmd.Cover.Domain, cmd.Cover.Root)
}

// canonicalize produces a deterministic byte serialization of a
// CommandBook's command bodies for correlation-id derivation (spec
// §4.5 step 2). It does not need to be a full wire encoding, only
// stable for identical input.
func canonicalize(cmd model.CommandBook) []byte {
	out := make([]byte, 0, 64)
	out = append(out, []byte(cmd.Cover.Domain)...)
	out = append(out, cmd.Cover.Root[:]...)

	for _, page := range cmd.Pages {
		out = append(out, []byte(page.Command.TypeURL)...)
		out = append(out, page.Command.Bytes...)
	}

	return out
}
