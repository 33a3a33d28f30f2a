package saga

import (
	"context"
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/businessclient"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaga struct {
	name          string
	outputDomains []string
	prepareFn     func(ctx context.Context, source model.EventBook) ([]model.Cover, error)
	executeFn     func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error)
	rejectedFn    func(ctx context.Context, cmd model.CommandBook, reason string) ([]model.CommandBook, error)
}

func (f *fakeSaga) Name() string            { return f.name }
func (f *fakeSaga) OutputDomains() []string { return f.outputDomains }
func (f *fakeSaga) Prepare(ctx context.Context, source model.EventBook) ([]model.Cover, error) {
	return f.prepareFn(ctx, source)
}
func (f *fakeSaga) Execute(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
	return f.executeFn(ctx, source, dest)
}
func (f *fakeSaga) OnCommandRejected(ctx context.Context, rejected model.CommandBook, reason string) ([]model.CommandBook, error) {
	if f.rejectedFn != nil {
		return f.rejectedFn(ctx, rejected, reason)
	}

	return nil, nil
}

func newTestEnv(t *testing.T, handler businessclient.Handler, domain string) (*pipeline.Pipeline, *repository.Repository) {
	t.Helper()

	repo := repository.New(store.NewMemoryEventStore(), store.NewMemorySnapshotStore(), repository.DefaultOptions())
	eventBus := bus.NewMemoryBus(mlog.NopLogger{})
	clients := businessclient.NewRegistry().RegisterHandler(domain, handler)
	p := pipeline.New(repo, eventBus, clients, nil, nil, mretry.DefaultConfig(), mlog.NopLogger{})

	return p, repo
}

func TestOrchestrator_EmptyCommandsIsNoAction(t *testing.T) {
	p, repo := newTestEnv(t, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		return businessclient.BusinessResponse{}, nil
	}, "billing")

	s := &fakeSaga{
		name:          "order-to-billing",
		outputDomains: []string{"billing"},
		prepareFn:     func(ctx context.Context, source model.EventBook) ([]model.Cover, error) { return nil, nil },
		executeFn: func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
			return nil, nil
		},
	}

	o := New(s, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})
	err := o.Handle(context.Background(), model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}})
	require.NoError(t, err)
}

func TestOrchestrator_DispatchesCommandsToOutputDomain(t *testing.T) {
	p, repo := newTestEnv(t, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		return businessclient.BusinessResponse{NewEvents: []model.EventPage{{Force: true, Event: model.Payload{TypeURL: "Charged"}}}}, nil
	}, "billing")

	billingRoot := uuid.New()

	s := &fakeSaga{
		name:          "order-to-billing",
		outputDomains: []string{"billing"},
		prepareFn:     func(ctx context.Context, source model.EventBook) ([]model.Cover, error) { return nil, nil },
		executeFn: func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
			return []model.CommandBook{{
				Cover: model.Cover{Domain: "billing", Root: billingRoot},
				Pages: []model.CommandPage{{AutoResequence: true, Command: model.Payload{TypeURL: "Charge"}}},
			}}, nil
		},
	}

	o := New(s, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})
	err := o.Handle(context.Background(), model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}})
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), "", "billing", billingRoot)
	require.NoError(t, err)
	assert.Len(t, got.Pages, 1)
}

func TestOrchestrator_StampsSagaOriginWhenAbsent(t *testing.T) {
	var seenOrigin *model.SagaCommandOrigin

	p, repo := newTestEnv(t, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		seenOrigin = cmd.Command.Pages[0].SagaOrigin
		return businessclient.BusinessResponse{}, nil
	}, "billing")

	s := &fakeSaga{
		name:          "order-to-billing",
		outputDomains: []string{"billing"},
		prepareFn:     func(ctx context.Context, source model.EventBook) ([]model.Cover, error) { return nil, nil },
		executeFn: func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
			return []model.CommandBook{{
				Cover: model.Cover{Domain: "billing", Root: uuid.New()},
				Pages: []model.CommandPage{{AutoResequence: true, Command: model.Payload{TypeURL: "Charge"}}},
			}}, nil
		},
	}

	o := New(s, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})
	require.NoError(t, o.Handle(context.Background(), model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}}))

	require.NotNil(t, seenOrigin)
	assert.Equal(t, "order-to-billing", seenOrigin.SagaName)
}

func TestOrchestrator_RejectsCommandOutsideOutputDomains(t *testing.T) {
	p, repo := newTestEnv(t, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		return businessclient.BusinessResponse{}, nil
	}, "billing")

	s := &fakeSaga{
		name:          "order-to-billing",
		outputDomains: []string{"billing"},
		prepareFn:     func(ctx context.Context, source model.EventBook) ([]model.Cover, error) { return nil, nil },
		executeFn: func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
			return []model.CommandBook{{
				Cover: model.Cover{Domain: "shipping", Root: uuid.New()},
				Pages: []model.CommandPage{{Command: model.Payload{TypeURL: "Ship"}}},
			}}, nil
		},
	}

	o := New(s, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})
	err := o.Handle(context.Background(), model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}})

	require.Error(t, err)
	var domainErr merr.OutputDomainError
	assert.ErrorAs(t, err, &domainErr)
}

func TestOrchestrator_InvokesCompensationOnRevocation(t *testing.T) {
	p, repo := newTestEnv(t, func(ctx context.Context, cmd businessclient.ContextualCommand) (businessclient.BusinessResponse, error) {
		return businessclient.BusinessResponse{Revocation: &businessclient.Revocation{Reason: "insufficient funds"}}, nil
	}, "billing")

	var compensated bool

	s := &fakeSaga{
		name:          "order-to-billing",
		outputDomains: []string{"billing"},
		prepareFn:     func(ctx context.Context, source model.EventBook) ([]model.Cover, error) { return nil, nil },
		executeFn: func(ctx context.Context, source model.EventBook, dest map[string]model.EventBook) ([]model.CommandBook, error) {
			return []model.CommandBook{{
				Cover: model.Cover{Domain: "billing", Root: uuid.New()},
				Pages: []model.CommandPage{{Command: model.Payload{TypeURL: "Charge"}}},
			}}, nil
		},
		rejectedFn: func(ctx context.Context, cmd model.CommandBook, reason string) ([]model.CommandBook, error) {
			compensated = true
			assert.Equal(t, "insufficient funds", reason)
			return nil, nil
		},
	}

	o := New(s, p, repo, mretry.DefaultConfig(), mlog.NopLogger{})
	require.NoError(t, o.Handle(context.Background(), model.EventBook{Cover: model.Cover{Domain: "orders", Root: uuid.New()}}))
	assert.True(t, compensated)
}
