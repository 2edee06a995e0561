package service

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

type mockCatalogRepo struct {
	mu             sync.Mutex
	calls          int
	listDomainFunc func(ctx context.Context, domain entity.Domain) ([]entity.StatusEntry, error)
}

func (m *mockCatalogRepo) ListDomain(ctx context.Context, domain entity.Domain) ([]entity.StatusEntry, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.listDomainFunc != nil {
		return m.listDomainFunc(ctx, domain)
	}
	return seededEntries(domain), nil
}

func (m *mockCatalogRepo) loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	// one ListDomain call per domain per load
	return m.calls / len(entity.Domains())
}

// seededEntries mirrors the seed migration: IDs follow vocabulary order
func seededEntries(domain entity.Domain) []entity.StatusEntry {
	names := vocabulary[domain]
	out := make([]entity.StatusEntry, len(names))
	for i, n := range names {
		out[i] = entity.StatusEntry{Domain: domain, ID: int64(i + 1), Name: n}
	}
	return out
}

type mockNotifier struct {
	publishFunc func(ctx context.Context) error
	published   int
}

func (m *mockNotifier) PublishInvalidation(ctx context.Context) error {
	m.published++
	if m.publishFunc != nil {
		return m.publishFunc(ctx)
	}
	return nil
}

type mockResourceRepo struct {
	createFunc  func(ctx context.Context, res *entity.Resource) error
	getByIDFunc func(ctx context.Context, id int64) (*entity.Resource, error)
	listFunc    func(ctx context.Context, statusID *int64, limit, offset int) ([]*entity.Resource, error)
}

func (m *mockResourceRepo) Create(ctx context.Context, res *entity.Resource) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, res)
	}
	res.ID = 1
	return nil
}

func (m *mockResourceRepo) GetByID(ctx context.Context, id int64) (*entity.Resource, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockResourceRepo) List(ctx context.Context, statusID *int64, limit, offset int) ([]*entity.Resource, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, statusID, limit, offset)
	}
	return nil, nil
}

func (m *mockResourceRepo) GetStatus(ctx context.Context, id int64) (int64, error) {
	return 0, nil
}

func (m *mockResourceRepo) CompareAndSetStatus(ctx context.Context, id, expected, next int64, update entity.ResourceUpdate) (bool, error) {
	return true, nil
}

type mockLoanRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.LoanRecord, error)
	listFunc    func(ctx context.Context, filter port.LoanFilter) ([]*entity.LoanRecord, error)
}

func (m *mockLoanRepo) Create(ctx context.Context, loan *entity.LoanRecord) error { return nil }

func (m *mockLoanRepo) GetByID(ctx context.Context, id int64) (*entity.LoanRecord, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockLoanRepo) List(ctx context.Context, filter port.LoanFilter) ([]*entity.LoanRecord, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockLoanRepo) CompareAndSetStatus(ctx context.Context, id, expected, next int64, update entity.LoanUpdate) (bool, error) {
	return true, nil
}

func (m *mockLoanRepo) CountOpen(ctx context.Context, resourceID int64, open []int64) (int, error) {
	return 0, nil
}

func (m *mockLoanRepo) ListOverdue(ctx context.Context, statusID int64, now time.Time, limit int) ([]*entity.LoanRecord, error) {
	return nil, nil
}

func (m *mockLoanRepo) MarkOverdueNotified(ctx context.Context, id, statusID int64, at time.Time) (bool, error) {
	return true, nil
}

type mockMaintenanceRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.MaintenanceRecord, error)
}

func (m *mockMaintenanceRepo) Create(ctx context.Context, task *entity.MaintenanceRecord) error {
	return nil
}

func (m *mockMaintenanceRepo) GetByID(ctx context.Context, id int64) (*entity.MaintenanceRecord, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockMaintenanceRepo) ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.MaintenanceRecord, error) {
	return nil, nil
}

func (m *mockMaintenanceRepo) CompareAndSetStatus(ctx context.Context, id, expected, next int64, update entity.MaintenanceUpdate) (bool, error) {
	return true, nil
}

func (m *mockMaintenanceRepo) CountOpen(ctx context.Context, resourceID int64, open []int64) (int, error) {
	return 0, nil
}

type mockHistoryRepo struct{}

func (m *mockHistoryRepo) Create(ctx context.Context, rec *entity.TransitionRecord) error { return nil }

func (m *mockHistoryRepo) ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error) {
	return nil, nil
}

func (m *mockHistoryRepo) ListByWorkflow(ctx context.Context, kind entity.WorkflowKind, id int64) ([]*entity.TransitionRecord, error) {
	return nil, nil
}

type logEntry struct {
	level string
	msg   string
	kv    []interface{}
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.record("info", msg, keysAndValues)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.record("error", msg, keysAndValues)
}

func (m *mockLogger) record(level, msg string, kv []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (m *mockLogger) errors() []logEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []logEntry
	for _, e := range m.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}
