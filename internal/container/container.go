package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/config"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/toolcrib/internal/infrastructure/telemetry"
	"github.com/garyjia/toolcrib/internal/infrastructure/worker"
	httpserver "github.com/garyjia/toolcrib/internal/interfaces/http"
	"github.com/garyjia/toolcrib/pkg/database"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	startWorkers bool

	// Infrastructure
	telemetryShutdown telemetry.ShutdownFunc
	db                *database.DB
	tx                *sqldb.DB
	repositories      *RepositoryBundle
	redis             *RedisBundle

	// Application
	dispatcher  dispatcher.Dispatcher
	catalog     service.StatusCatalog
	coordinator workflow.Coordinator
	inventory   service.InventoryService

	// Workers
	workers *worker.WorkerManager
	overdue *worker.OverdueWorker

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Catalog     port.CatalogRepository
	Resource    port.ResourceRepository
	Loan        port.LoanRepository
	Maintenance port.MaintenanceRepository
	History     port.HistoryRepository
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures a Container
type Option func(*Container)

// WithoutWorkers builds the workers but does not start them. One-shot
// commands use this.
func WithoutWorkers() Option {
	return func(c *Container) {
		c.startWorkers = false
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:       cfg,
		logger:       logger,
		startWorkers: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Telemetry
// 2. Database, migrations and repositories
// 3. Redis
// 4. Event dispatcher
// 5. Status catalog, coordinator and read services
// 6. Workers
// A failed step tears down whatever was already initialized.
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	defer func() {
		if err != nil {
			if closeErr := c.teardown(); closeErr != nil {
				c.logger.Error("Cleanup after failed start", zap.Error(closeErr))
			}
		}
	}()

	// Step 1: Telemetry
	c.telemetryShutdown, err = telemetry.Setup(c.ctx, telemetryConfig(c.config), c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Step 2: Database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 3: Redis
	c.redis, err = ProvideRedis(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Step 4: Dispatcher
	c.dispatcher, err = ProvideDispatcher(c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	// Step 5: Application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 6: Workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Drains in-flight async handlers.
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.redis != nil && c.redis.Client != nil {
		if err := c.redis.Client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redis = nil
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.db = nil
	}

	if c.telemetryShutdown != nil {
		// The start context is cancelled by now.
		if err := c.telemetryShutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		c.telemetryShutdown = nil
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Ping reports whether the store is reachable. It backs GET /health.
func (c *Container) Ping(ctx context.Context) error {
	if c.tx == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.tx.Ping(ctx)
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	set("database", c.Ping(ctx))

	if c.redis != nil && c.redis.Client != nil {
		set("redis", c.redis.Client.Ping(ctx).Err())
	}

	if c.workers == nil {
		set("workers", fmt.Errorf("not initialized"))
	} else if c.startWorkers && !c.workers.IsRunning() {
		set("workers", fmt.Errorf("%d registered, not running", c.workers.GetWorkerCount()))
	} else {
		set("workers", nil)
	}

	return status
}

// initDatabase opens the store and builds the repositories.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.tx = bundle.TransactionMgr

	c.repositories, err = ProvideRepositories(c.db, c.logger)
	return err
}

// initServices builds the catalog, the coordinator and the read side.
func (c *Container) initServices() error {
	var notifier port.CatalogNotifier
	if c.redis.Notifier != nil {
		notifier = c.redis.Notifier
	}

	catalog, err := ProvideCatalog(c.ctx, &CatalogDeps{
		Repo:       c.repositories.Catalog,
		Config:     &c.config.Catalog,
		Notifier:   notifier,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.catalog = catalog

	c.coordinator, err = ProvideCoordinator(&CoordinatorDeps{
		Repos:      c.repositories,
		TxManager:  c.tx,
		Catalog:    c.catalog,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.inventory = service.NewInventoryService(
		c.repositories.Resource,
		c.repositories.Loan,
		c.repositories.Maintenance,
		c.repositories.History,
		c.catalog,
		utils.NewKVLogger(c.logger),
	)
	return nil
}

// initWorkers builds the workers and, unless disabled, starts them.
func (c *Container) initWorkers() error {
	var source worker.InvalidationSource
	if c.redis.Notifier != nil {
		source = c.redis.Notifier
	}

	workers, overdue, err := ProvideWorkers(&WorkerDeps{
		Repos:      c.repositories,
		Catalog:    c.catalog,
		Dispatcher: c.dispatcher,
		Source:     source,
		Config:     c.config,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers
	c.overdue = overdue

	if !c.startWorkers {
		return nil
	}
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", c.workers.GetWorkerCount()))
	return nil
}

// NewHTTPServer builds the HTTP adapter over the container's services.
func (c *Container) NewHTTPServer() (*httpserver.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	services := httpserver.Services{
		Coordinator: c.coordinator,
		Inventory:   c.inventory,
		Catalog:     c.catalog,
		Health:      c,
	}
	if c.redis.Idempotency != nil {
		services.Idempotency = c.redis.Idempotency
	}

	return httpserver.NewServer(ServerConfig(c.config), services, utils.NewKVLogger(c.logger)), nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.tx
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Catalog returns the status catalog.
func (c *Container) Catalog() service.StatusCatalog {
	return c.catalog
}

// Coordinator returns the workflow coordinator.
func (c *Container) Coordinator() workflow.Coordinator {
	return c.coordinator
}

// Inventory returns the read-side service.
func (c *Container) Inventory() service.InventoryService {
	return c.inventory
}

// OverdueWorker returns the overdue loan scanner.
func (c *Container) OverdueWorker() *worker.OverdueWorker {
	return c.overdue
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
