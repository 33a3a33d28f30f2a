package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/LerianStudio/midaz-flow/internal/adapters/embedded"
	httpadapter "github.com/LerianStudio/midaz-flow/internal/adapters/http"
	"github.com/LerianStudio/midaz-flow/internal/adapters/mongodb"
	"github.com/LerianStudio/midaz-flow/internal/adapters/postgres"
	"github.com/LerianStudio/midaz-flow/internal/adapters/rabbitmq"
	"github.com/LerianStudio/midaz-flow/internal/adapters/redis"
	"github.com/LerianStudio/midaz-flow/internal/adapters/sqlite"
	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/businessclient"
	"github.com/LerianStudio/midaz-flow/internal/checkpoint"
	"github.com/LerianStudio/midaz-flow/internal/compensation"
	"github.com/LerianStudio/midaz-flow/internal/edition"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/offload"
	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/processmanager"
	"github.com/LerianStudio/midaz-flow/internal/projector"
	"github.com/LerianStudio/midaz-flow/internal/repair"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/internal/saga"
	"github.com/LerianStudio/midaz-flow/internal/store"
	"github.com/LerianStudio/midaz-flow/internal/upcast"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
)

// SagaBinding pairs a Saga with the routing-key filter the bus
// subscribes it to (spec §4.6's trigger subscription, left to the
// embedder since only it knows which upstream domain feeds a saga).
type SagaBinding struct {
	Saga         saga.Saga
	DomainFilter string
}

// ProcessManagerBinding is SagaBinding's equivalent for spec §4.7.
type ProcessManagerBinding struct {
	PM           processmanager.ProcessManager
	DomainFilter string
}

// Options contains optional dependencies an embedder supplies, the
// same role the teacher's bootstrap.Options{Logger} plays, generalized
// to every injectable this runtime needs (aggregate business handlers
// are necessarily embedder-specific — this core has no domain logic of
// its own, per spec §1).
type Options struct {
	Logger           mlog.Logger
	BusinessHandlers map[string]businessclient.Client
	Upcasters        *upcast.Chain
	Sagas            []SagaBinding
	ProcessManagers  []ProcessManagerBinding
}

// Service is the fully wired runtime: every layer spec §4 names,
// glued together, plus whatever subscribers the embedder bound.
type Service struct {
	Config Config
	Logger mlog.Logger

	Repo         *repository.Repository
	Bus          bus.EventBus
	Pipeline     *pipeline.Pipeline
	Upcasters    *upcast.Chain
	Projector    *projector.Driver
	Repairer     *repair.Repairer
	Compensation *compensation.Engine
	Editions     *edition.Manager
	Offloader    *offload.Offloader
	Checkpoints  checkpoint.Store
	HTTP         *httpadapter.Server

	sagaOrchestrators []*saga.Orchestrator
	pmOrchestrators   []*processmanager.Orchestrator
	sagaFilters       []string
	pmFilters         []string

	closers []func() error
}

// InitServers is InitServersWithOptions(nil).
func InitServers(cfg Config) (*Service, error) {
	return InitServersWithOptions(cfg, nil)
}

// InitServersWithOptions builds every layer of the runtime from cfg,
// the teacher's InitServersWithOptions DI-entry-point convention
// (components/crm/internal/bootstrap/config.go) generalized to this
// module's event-sourcing core.
func InitServersWithOptions(cfg Config, opts *Options) (*Service, error) {
	if opts == nil {
		opts = &Options{}
	}

	logger := opts.Logger
	if logger == nil {
		var err error

		logger, err = mlog.New(cfg.EnvName, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: initialize logger: %w", err)
		}
	}

	svc := &Service{Config: cfg, Logger: logger}

	events, snapshots, checkpoints, closeStorage, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}

	svc.Checkpoints = checkpoints
	svc.closers = append(svc.closers, closeStorage)

	repo := repository.New(events, snapshots, repository.Options{
		SnapshotReadEnabled:  cfg.SnapshotReadEnabled,
		SnapshotWriteEnabled: cfg.SnapshotWriteEnabled,
	})
	svc.Repo = repo

	svc.Offloader = offload.NewOffloader(offload.NewMemoryStore(), cfg.OffloadThresholdBytes)

	eventBus, err := svc.buildBus(cfg, logger)
	if err != nil {
		return nil, err
	}

	if attacher, ok := eventBus.(bus.OffloadAttacher); ok {
		attacher.AttachOffloadResolver(svc.Offloader)
	}

	svc.Bus = eventBus

	clients := businessclient.NewRegistry()
	for domain, client := range opts.BusinessHandlers {
		clients.Register(domain, client)
	}

	svc.Upcasters = opts.Upcasters

	svc.Repairer = repair.New(repo, logger)
	svc.Projector = projector.NewDriver(svc.Repairer, logger)
	svc.Compensation = compensation.NewEngine(logger)
	svc.Editions = edition.NewManager()

	retry := cfg.RetryConfig()

	svc.Pipeline = pipeline.New(repo, eventBus, clients, svc.Upcasters, svc.Projector, retry, logger).
		WithCompensation(svc.Compensation).
		WithOffload(svc.Offloader)

	for _, b := range opts.Sagas {
		o := saga.New(b.Saga, svc.Pipeline, repo, retry, logger)
		svc.Compensation.Register(o)
		svc.sagaOrchestrators = append(svc.sagaOrchestrators, o)
		svc.sagaFilters = append(svc.sagaFilters, b.DomainFilter)
	}

	for _, b := range opts.ProcessManagers {
		o := processmanager.New(b.PM, svc.Pipeline, repo, retry, logger)
		svc.Compensation.Register(o)
		svc.pmOrchestrators = append(svc.pmOrchestrators, o)
		svc.pmFilters = append(svc.pmFilters, b.DomainFilter)
	}

	if cfg.HTTPAddress != "" {
		svc.HTTP = httpadapter.NewServer(repo, svc.Pipeline, logger)
	}

	return svc, nil
}

// OpenStorage builds the EventStore/SnapshotStore/checkpoint.Store
// triple cfg.StorageDriver names, plus a close function releasing
// whatever resources it opened. Exported so cmd/midaz-flow's
// single-shot commands (list-domains, get-events, create-edition) can
// open the same storage a running Service uses without going through
// the full InitServersWithOptions wiring.
func OpenStorage(cfg Config) (store.EventStore, store.SnapshotStore, checkpoint.Store, func() error, error) {
	events, snapshots, checkpoints, closeStorage, err := openBaseStorage(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if SnapshotDriver(cfg.SnapshotDriver) == SnapshotMongoDB {
		conn, err := mongodb.Connect(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			_ = closeStorage()
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open mongodb snapshot store: %w", err)
		}

		snapshots = mongodb.NewStore(conn)
		closeStorage = chainClose(conn.Close, closeStorage)
	}

	if CheckpointDriver(cfg.CheckpointDriver) == CheckpointRedis {
		rs, err := redis.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			_ = closeStorage()
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open redis checkpoint store: %w", err)
		}

		checkpoints = rs
		closeStorage = chainClose(rs.Close, closeStorage)
	}

	return events, snapshots, checkpoints, closeStorage, nil
}

// chainClose returns a close function running first, then next,
// reporting first's error if both fail.
func chainClose(first, next func() error) func() error {
	return func() error {
		err1 := first()
		err2 := next()

		if err1 != nil {
			return err1
		}

		return err2
	}
}

func openBaseStorage(cfg Config) (store.EventStore, store.SnapshotStore, checkpoint.Store, func() error, error) {
	switch StorageDriver(cfg.StorageDriver) {
	case "", StorageMemory:
		return store.NewMemoryEventStore(), store.NewMemorySnapshotStore(), checkpoint.NewMemoryStore(), func() error { return nil }, nil

	case StorageEmbedded:
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}

		es, err := embedded.Open(filepath.Join(dir, "midaz-flow.db"))
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open embedded store: %w", err)
		}

		cps, err := embedded.OpenCheckpointStore(es.DB())
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open embedded checkpoint store: %w", err)
		}

		return es, es, cps, es.Close, nil

	case StoragePostgres:
		conn, err := postgres.Connect(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open postgres store: %w", err)
		}

		ps := postgres.NewStore(conn)

		return ps, ps, postgres.NewCheckpointStore(conn), conn.Close, nil

	case StorageSQLite:
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}

		ss, err := sqlite.Open(filepath.Join(dir, "midaz-flow.sqlite"))
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("bootstrap: open sqlite store: %w", err)
		}

		// sqlite has no checkpoints table of its own (spec §4.8's
		// dedup/recovery map isn't append-only history the way
		// event_pages/snapshots are); checkpoint.MemoryStore is a
		// deliberate simplification for this single-process mode.
		return ss, ss, checkpoint.NewMemoryStore(), ss.Close, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("bootstrap: unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (s *Service) buildBus(cfg Config, logger mlog.Logger) (bus.EventBus, error) {
	switch BusDriver(cfg.BusDriver) {
	case "", BusMemory:
		return bus.NewMemoryBus(logger), nil

	case BusRabbitMQ:
		conn, err := rabbitmq.Connect(context.Background(), cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect rabbitmq bus: %w", err)
		}

		s.closers = append(s.closers, conn.Close)

		return rabbitmq.NewBus(conn, logger), nil

	default:
		return nil, fmt.Errorf("bootstrap: unsupported bus driver %q", cfg.BusDriver)
	}
}

// Run starts every bound saga/process-manager subscriber and blocks
// until ctx is canceled or a termination signal arrives, then closes
// every resource this Service opened. Mirrors the teacher's
// libCommons.Launcher + graceful-shutdown shape without depending on
// its private module.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, o := range s.sagaOrchestrators {
		if err := s.subscribe(ctx, fmt.Sprintf("saga:%s", o.Name()), s.sagaFilters[i], o.Handle); err != nil {
			return err
		}
	}

	for i, o := range s.pmOrchestrators {
		if err := s.subscribe(ctx, fmt.Sprintf("pm:%s", o.Name()), s.pmFilters[i], o.Handle); err != nil {
			return err
		}
	}

	if s.HTTP != nil {
		go func() {
			if err := s.HTTP.Listen(s.Config.HTTPAddress); err != nil {
				s.Logger.Errorf("midaz-flow: http server stopped: %v", err)
			}
		}()
	}

	s.Logger.Infof("midaz-flow: running with storage=%s bus=%s", s.Config.StorageDriver, s.Config.BusDriver)

	<-ctx.Done()

	s.Logger.Infof("midaz-flow: shutting down")

	if s.HTTP != nil {
		if err := s.HTTP.Shutdown(context.Background()); err != nil {
			s.Logger.Errorf("midaz-flow: http server shutdown: %v", err)
		}
	}

	return s.Close()
}

func (s *Service) subscribe(ctx context.Context, name, filter string, handle func(context.Context, model.EventBook) error) error {
	sub, err := s.Bus.CreateSubscriber(name, filter)
	if err != nil {
		return fmt.Errorf("bootstrap: create subscriber %s: %w", name, err)
	}

	sub.Subscribe(func(ctx context.Context, d bus.Delivery) error {
		return handle(ctx, d.Book)
	})

	if err := sub.StartConsuming(ctx); err != nil {
		return fmt.Errorf("bootstrap: start subscriber %s: %w", name, err)
	}

	s.closers = append(s.closers, sub.Close)

	return nil
}

// Close releases every resource InitServersWithOptions opened (storage
// files, subscriber channels). Safe to call multiple times.
func (s *Service) Close() error {
	var firstErr error

	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	_ = s.Logger.Sync()

	return firstErr
}
