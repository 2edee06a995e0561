package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	"github.com/garyjia/toolcrib/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// StatusCatalog resolves status names to catalog IDs per domain
type StatusCatalog interface {
	// Load reads every domain from the store and replaces the cached snapshot
	Load(ctx context.Context) error
	// Refresh is Load followed by an invalidation broadcast to other instances
	Refresh(ctx context.Context) error
	// Resolve returns the ID of name in domain, or ErrUnknownStatus
	Resolve(ctx context.Context, domain entity.Domain, name string) (int64, error)
	// Name is the reverse lookup of Resolve
	Name(domain entity.Domain, id int64) (string, bool)
	// Entries lists a domain's entries in ID order
	Entries(domain entity.Domain) []entity.StatusEntry
}

// vocabulary is the closed set of names each domain must provide
var vocabulary = map[entity.Domain][]string{
	entity.DomainResource:    entity.ResourceStatuses(),
	entity.DomainLoan:        stateNames(workflow.LoanStates()),
	entity.DomainMaintenance: stateNames(workflow.MaintenanceStates()),
}

func stateNames(states []workflow.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

type catalogSnapshot struct {
	byName   map[entity.Domain]map[string]int64
	byID     map[entity.Domain]map[int64]string
	entries  map[entity.Domain][]entity.StatusEntry
	loadedAt time.Time
}

type statusCatalogImpl struct {
	repo       port.CatalogRepository
	notifier   port.CatalogNotifier
	dispatcher dispatcher.Dispatcher
	logger     Logger
	maxAge     time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	snapshot *catalogSnapshot

	// serializes loads so a burst of stale resolves triggers one query
	loadMu sync.Mutex
}

// CatalogOption configures the status catalog
type CatalogOption func(*statusCatalogImpl)

// WithMaxAge makes Resolve reload the catalog once the snapshot is older than d. Zero disables.
func WithMaxAge(d time.Duration) CatalogOption {
	return func(c *statusCatalogImpl) {
		c.maxAge = d
	}
}

// WithCatalogNotifier broadcasts Refresh to other instances
func WithCatalogNotifier(n port.CatalogNotifier) CatalogOption {
	return func(c *statusCatalogImpl) {
		c.notifier = n
	}
}

// WithCatalogDispatcher emits catalog.refreshed after every successful load
func WithCatalogDispatcher(d dispatcher.Dispatcher) CatalogOption {
	return func(c *statusCatalogImpl) {
		c.dispatcher = d
	}
}

// WithCatalogClock overrides time.Now
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *statusCatalogImpl) {
		c.now = now
	}
}

// NewStatusCatalog creates an empty catalog. Call Load before serving traffic.
func NewStatusCatalog(repo port.CatalogRepository, logger Logger, opts ...CatalogOption) StatusCatalog {
	c := &statusCatalogImpl{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads all domains and swaps the snapshot
func (c *statusCatalogImpl) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loadLocked(ctx)
}

func (c *statusCatalogImpl) loadLocked(ctx context.Context) error {
	snap := &catalogSnapshot{
		byName:   make(map[entity.Domain]map[string]int64),
		byID:     make(map[entity.Domain]map[int64]string),
		entries:  make(map[entity.Domain][]entity.StatusEntry),
		loadedAt: c.now(),
	}

	total := 0
	for _, domain := range entity.Domains() {
		entries, err := c.repo.ListDomain(ctx, domain)
		if err != nil {
			return fmt.Errorf("failed to load %s catalog: %w", domain, err)
		}

		byName := make(map[string]int64, len(entries))
		byID := make(map[int64]string, len(entries))
		for _, e := range entries {
			byName[e.Name] = e.ID
			byID[e.ID] = e.Name
		}
		snap.byName[domain] = byName
		snap.byID[domain] = byID
		snap.entries[domain] = entries
		total += len(entries)

		for _, name := range vocabulary[domain] {
			if _, ok := byName[name]; !ok {
				c.logger.Error("Status missing from catalog, configuration defect",
					"domain", domain,
					"status", name,
				)
			}
		}
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	c.logger.Info("Status catalog loaded", "entries", total)

	if c.dispatcher != nil {
		c.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(event.TypeCatalogRefreshed, 0, 0, map[string]interface{}{
			"entries": total,
		}))
	}
	return nil
}

// Refresh reloads and tells other instances to do the same
func (c *statusCatalogImpl) Refresh(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		return err
	}
	if c.notifier == nil {
		return nil
	}
	if err := c.notifier.PublishInvalidation(ctx); err != nil {
		// Local snapshot is fresh; peers catch up on their own max age.
		c.logger.Error("Failed to publish catalog invalidation", "error", err)
	}
	return nil
}

// Resolve returns the ID for name in domain
func (c *statusCatalogImpl) Resolve(ctx context.Context, domain entity.Domain, name string) (int64, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return 0, err
	}

	id, ok := snap.byName[domain][name]
	if !ok {
		c.logger.Error("Unknown status, configuration defect",
			"domain", domain,
			"status", name,
		)
		return 0, fmt.Errorf("%w: %s status %q", workflow.ErrUnknownStatus, domain, name)
	}
	return id, nil
}

// Name returns the status name for id in domain
func (c *statusCatalogImpl) Name(domain entity.Domain, id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return "", false
	}
	name, ok := c.snapshot.byID[domain][id]
	return name, ok
}

// Entries returns a copy of the domain's entries
func (c *statusCatalogImpl) Entries(domain entity.Domain) []entity.StatusEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	src := c.snapshot.entries[domain]
	out := make([]entity.StatusEntry, len(src))
	copy(out, src)
	return out
}

// current returns a snapshot, loading when none exists or the cached one
// has outlived maxAge. A failed reload keeps serving the stale snapshot.
func (c *statusCatalogImpl) current(ctx context.Context) (*catalogSnapshot, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	if c.fresh(snap) {
		return snap, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// Another caller may have reloaded while we waited.
	c.mu.RLock()
	snap = c.snapshot
	c.mu.RUnlock()
	if c.fresh(snap) {
		return snap, nil
	}

	if err := c.loadLocked(ctx); err != nil {
		if snap != nil {
			c.logger.Error("Catalog reload failed, serving stale snapshot", "error", err)
			return snap, nil
		}
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, nil
}

func (c *statusCatalogImpl) fresh(snap *catalogSnapshot) bool {
	return snap != nil && (c.maxAge <= 0 || c.now().Sub(snap.loadedAt) < c.maxAge)
}
