package processmanager

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/businessclient"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePM struct {
	name          string
	domain        string
	triggerDomain string
	handleFn      func(ctx context.Context, trigger, pmState model.EventBook, dest map[string]model.EventBook) (HandleResult, error)
	revocationFn  func(ctx context.Context, n model.RejectionNotification, pmState model.EventBook) (RevocationResult, error)
}

func (f *fakePM) Name() string          { return f.name }
func (f *fakePM) Domain() string        { return f.domain }
func (f *fakePM) TriggerDomain() string { return f.triggerDomain }
func (f *fakePM) Prepare(ctx context.Context, trigger, pmState model.EventBook) ([]model.Cover, error) {
	return nil, nil
}
func (f *fakePM) Handle(ctx context.Context, trigger, pmState model.EventBook, dest map[string]model.EventBook) (HandleResult, error) {
	return f.handleFn(ctx, trigger, pmState, dest)
}
func (f *fakePM) HandleRevocation(ctx context.Context, n model.RejectionNotification, pmState model.EventBook) (RevocationResult, error) {
	return f.revocationFn(ctx, n, pmState)
}

func newTestOrchestrator(t *testing.T, pm *fakePM, billingHandler businessclient.Handler) (*Orchestrator, *repository.Repository) {
	t.Helper()

	repo := repository.New(store.NewMemoryEventStore(), store.NewMemorySnapshotStore(), repository.DefaultOptions())
	eventBus := bus.NewMemoryBus(mlog.NopLogger{})
	clients := businessclient.NewRegistry()
	if billingHandler != nil {
		clients.RegisterHandler("billing", billingHandler)
	}

	p := pipeline.New(repo, eventBus, clients, nil, nil, mretry.DefaultConfig(), mlog.NopLogger{})
	o := New(pm, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})

	return o, repo
}

func TestOrchestrator_SkipsTriggerWithNoCorrelation(t *testing.T) {
	pm := &fakePM{name: "pm-order-flow", domain: "pm_order_flow", triggerDomain: "orders"}
	o, _ := newTestOrchestrator(t, pm, nil)

	trigger := model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}}
	require.NoError(t, o.Handle(context.Background(), trigger))
}

func TestOrchestrator_PersistsProcessEvents(t *testing.T) {
	pm := &fakePM{
		name: "pm-order-flow", domain: "pm_order_flow", triggerDomain: "orders",
		handleFn: func(ctx context.Context, trigger, pmState model.EventBook, dest map[string]model.EventBook) (HandleResult, error) {
			return HandleResult{ProcessEvents: []model.EventPage{{Event: model.Payload{TypeURL: "WorkflowStarted"}}}}, nil
		},
	}
	o, repo := newTestOrchestrator(t, pm, nil)

	trigger := model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New(), CorrelationID: "corr-1"}}
	require.NoError(t, o.Handle(context.Background(), trigger))

	roots, err := repo.FindByCorrelation(context.Background(), "", "pm_order_flow", "corr-1")
	require.NoError(t, err)
	require.Len(t, roots, 1)

	got, err := repo.Get(context.Background(), "", "pm_order_flow", roots[0])
	require.NoError(t, err)
	assert.Len(t, got.Pages, 1)
	assert.Equal(t, uint32(0), got.Pages[0].Sequence)
}

func TestOrchestrator_DispatchesCommandsWithOrigin(t *testing.T) {
	var seenOrigin *model.SagaCommandOrigin

	pm := &fakePM{
		name: "pm-order-flow", domain: "pm_order_flow", triggerDomain: "orders",
		handleFn: func(ctx context.Context, trigger, pmState model.EventBook, dest map[string]model.EventBook) (HandleResult, error) {
			return HandleResult{Commands: []model.CommandBook{{
				Cover: model.Cover{Domain: "billing", Root: uuid.New()},
				Pages: []model.CommandPage{{AutoResequence: true, Command: model.Payload{TypeURL: "Charge"}}},
			}}}, nil
		},
	}

	o, _ := newTestOrchestrator(t, pm, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		seenOrigin = cmd.Command.Pages[0].SagaOrigin
		return businessclient.BusinessResponse{}, nil
	})

	trigger := model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New(), CorrelationID: "corr-2"}}
	require.NoError(t, o.Handle(context.Background(), trigger))

	require.NotNil(t, seenOrigin)
	assert.Equal(t, "pm-order-flow", seenOrigin.SagaName)
}

func TestOrchestrator_RepeatedTriggerReusesSamePMRoot(t *testing.T) {
	calls := 0
	pm := &fakePM{
		name: "pm-order-flow", domain: "pm_order_flow", triggerDomain: "orders",
		handleFn: func(ctx context.Context, trigger, pmState model.EventBook, dest map[string]model.EventBook) (HandleResult, error) {
			calls++
			return HandleResult{ProcessEvents: []model.EventPage{{Event: model.Payload{TypeURL: "Step"}}}}, nil
		},
	}
	o, repo := newTestOrchestrator(t, pm, nil)

	trigger := model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New(), CorrelationID: "corr-3"}}
	require.NoError(t, o.Handle(context.Background(), trigger))
	require.NoError(t, o.Handle(context.Background(), trigger))

	roots, err := repo.FindByCorrelation(context.Background(), "", "pm_order_flow", "corr-3")
	require.NoError(t, err)
	require.Len(t, roots, 1)

	got, err := repo.Get(context.Background(), "", "pm_order_flow", roots[0])
	require.NoError(t, err)
	assert.Len(t, got.Pages, 2)
	assert.Equal(t, 2, calls)
}

func TestOrchestrator_HandleRevocationPersistsEvents(t *testing.T) {
	pm := &fakePM{
		name: "pm-order-flow", domain: "pm_order_flow", triggerDomain: "orders",
		revocationFn: func(ctx context.Context, n model.RejectionNotification, pmState model.EventBook) (RevocationResult, error) {
			return RevocationResult{ProcessEvents: []model.EventPage{{Event: model.Payload{TypeURL: "CompensationRecorded"}}}}, nil
		},
	}
	o, repo := newTestOrchestrator(t, pm, nil)

	notification := model.RejectionNotification{
		RejectedCommand: model.CommandBook{Cover: model.Cover{Domain: "billing", Root: uuid.New(), CorrelationID: "corr-4"}},
		Reason:          "insufficient funds",
	}

	require.NoError(t, o.HandleRevocation(context.Background(), notification))

	roots, err := repo.FindByCorrelation(context.Background(), "", "pm_order_flow", "corr-4")
	require.NoError(t, err)
	require.Len(t, roots, 1)
}
