package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/config"
	"github.com/garyjia/toolcrib/internal/domain/event"
	"github.com/garyjia/toolcrib/internal/infrastructure/cache"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/repository"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/toolcrib/internal/infrastructure/worker"
	"github.com/garyjia/toolcrib/pkg/database"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqldb.DB
}

// RedisBundle holds the Redis-backed components. All fields are nil when
// Redis is not configured.
type RedisBundle struct {
	Client      *redis.Client
	Notifier    *cache.CatalogNotifier
	Idempotency *cache.IdempotencyStore
}

// ProvideDatabase opens the pool, applies pending migrations and wraps the
// connection in the transaction executor.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.Open(ctx, cfg.ToDatabaseConfig(), logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var opts []sqldb.Option
	if cfg.AcquireTimeout > 0 {
		opts = append(opts, sqldb.WithAcquireTimeout(cfg.AcquireTimeout))
	}
	if cfg.RetryBackoff > 0 {
		opts = append(opts, sqldb.WithRetryBackoff(cfg.RetryBackoff))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqldb.NewDB(db.DB, logger, opts...),
	}, nil
}

// ProvideRepositories creates all repositories over one pool.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Catalog:     repository.NewCatalogRepository(db.DB, logger),
		Resource:    repository.NewResourceRepository(db.DB, logger),
		Loan:        repository.NewLoanRepository(db.DB, logger),
		Maintenance: repository.NewMaintenanceRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideRedis connects to Redis when an address is configured.
func ProvideRedis(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*RedisBundle, error) {
	if cfg == nil || !cfg.Enabled() {
		logger.Info("Redis not configured, catalog fan-out and idempotency keys disabled")
		return &RedisBundle{}, nil
	}

	rdb, err := cache.OpenRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("Redis connection established", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &RedisBundle{
		Client:      rdb,
		Notifier:    cache.NewCatalogNotifier(rdb, cfg.CatalogChannel, logger),
		Idempotency: cache.NewIdempotencyStore(rdb),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the event log.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
	)

	dispatcher.SubscribeAll(d, "event_log", newEventLogHandler(logger))

	return d, nil
}

// CatalogDeps holds dependencies required for creating the status catalog.
type CatalogDeps struct {
	Repo       port.CatalogRepository
	Config     *config.CatalogConfig
	Notifier   port.CatalogNotifier
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideCatalog creates the status catalog and loads it. A catalog that
// cannot be loaded keeps the service from starting.
func ProvideCatalog(ctx context.Context, deps *CatalogDeps) (service.StatusCatalog, error) {
	if deps == nil || deps.Repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}

	opts := []service.CatalogOption{}
	if deps.Config != nil && deps.Config.MaxAge > 0 {
		opts = append(opts, service.WithMaxAge(deps.Config.MaxAge))
	}
	if deps.Notifier != nil {
		opts = append(opts, service.WithCatalogNotifier(deps.Notifier))
	}
	if deps.Dispatcher != nil {
		opts = append(opts, service.WithCatalogDispatcher(deps.Dispatcher))
	}

	catalog := service.NewStatusCatalog(deps.Repo, utils.NewKVLogger(deps.Logger), opts...)
	if err := catalog.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load status catalog: %w", err)
	}
	return catalog, nil
}

// CoordinatorDeps holds dependencies required for creating the coordinator.
type CoordinatorDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Catalog    workflow.StatusResolver
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideCoordinator creates the workflow coordinator.
func ProvideCoordinator(deps *CoordinatorDeps) (workflow.Coordinator, error) {
	if deps == nil {
		return nil, fmt.Errorf("coordinator dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("status catalog is required")
	}

	var opts []workflow.Option
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}

	return workflow.NewCoordinator(
		workflow.Repositories{
			Resources:   deps.Repos.Resource,
			Loans:       deps.Repos.Loan,
			Maintenance: deps.Repos.Maintenance,
			History:     deps.Repos.History,
		},
		deps.TxManager,
		deps.Catalog,
		utils.NewKVLogger(deps.Logger),
		opts...,
	), nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos      *RepositoryBundle
	Catalog    service.StatusCatalog
	Dispatcher dispatcher.Dispatcher
	Source     worker.InvalidationSource
	Config     *config.Config
	Logger     *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns the manager with all workers registered but not started, and the
// overdue scanner so one-shot commands can run it directly.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, *worker.OverdueWorker, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, nil, fmt.Errorf("repositories are required")
	}
	if deps.Catalog == nil {
		return nil, nil, fmt.Errorf("status catalog is required")
	}
	if deps.Config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	overdue := worker.NewOverdueWorker(
		overdueWorkerConfig(deps.Config),
		deps.Repos.Loan,
		deps.Catalog,
		deps.Dispatcher,
		deps.Logger,
	)
	manager.Register(overdue)

	// Without Redis there are no other instances to hear from.
	if deps.Source != nil {
		manager.Register(worker.NewCatalogInvalidationWorker(deps.Source, deps.Catalog, deps.Logger))
	}

	return manager, overdue, nil
}

// newEventLogHandler records every dispatched event in the service log
func newEventLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt == nil {
			return fmt.Errorf("event cannot be nil")
		}

		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Int64("workflow_id", evt.WorkflowID),
			zap.Int64("resource_id", evt.ResourceID),
		}
		for k, v := range evt.Payload {
			fields = append(fields, zap.Any(k, v))
		}

		if evt.Type == event.TypeLoanOverdue {
			logger.Warn("Loan overdue", fields...)
			return nil
		}
		logger.Info("Event", fields...)
		return nil
	}
}
