package port

import (
	"context"
	"time"

	"github.com/garyjia/toolcrib/internal/domain/entity"
)

// TransactionManager runs a unit of work inside one database transaction.
// The transaction travels in the context handed to fn; repositories called
// with that context join it.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResourceRepository is the resource state store. GetStatus and
// CompareAndSetStatus require a transaction in ctx.
type ResourceRepository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	GetByID(ctx context.Context, id int64) (*entity.Resource, error)
	List(ctx context.Context, statusID *int64, limit, offset int) ([]*entity.Resource, error)
	GetStatus(ctx context.Context, id int64) (int64, error)
	CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.ResourceUpdate) (bool, error)
}

// LoanFilter narrows ListLoans. Zero values mean "any".
type LoanFilter struct {
	ResourceID int64
	StatusID   int64
	Limit      int
	Offset     int
}

// LoanRepository defines persistence operations for LoanRecord
type LoanRepository interface {
	Create(ctx context.Context, loan *entity.LoanRecord) error
	GetByID(ctx context.Context, id int64) (*entity.LoanRecord, error)
	List(ctx context.Context, filter LoanFilter) ([]*entity.LoanRecord, error)
	CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.LoanUpdate) (bool, error)
	CountOpen(ctx context.Context, resourceID int64, openStatusIDs []int64) (int, error)
	ListOverdue(ctx context.Context, checkedOutStatusID int64, now time.Time, limit int) ([]*entity.LoanRecord, error)
	MarkOverdueNotified(ctx context.Context, id, checkedOutStatusID int64, at time.Time) (bool, error)
}

// MaintenanceRepository defines persistence operations for MaintenanceRecord
type MaintenanceRepository interface {
	Create(ctx context.Context, task *entity.MaintenanceRecord) error
	GetByID(ctx context.Context, id int64) (*entity.MaintenanceRecord, error)
	ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.MaintenanceRecord, error)
	CompareAndSetStatus(ctx context.Context, id, expectedStatusID, newStatusID int64, update entity.MaintenanceUpdate) (bool, error)
	CountOpen(ctx context.Context, resourceID int64, openStatusIDs []int64) (int, error)
}

// CatalogRepository reads the status catalog tables
type CatalogRepository interface {
	ListDomain(ctx context.Context, domain entity.Domain) ([]entity.StatusEntry, error)
}

// HistoryRepository stores the transition audit trail
type HistoryRepository interface {
	Create(ctx context.Context, record *entity.TransitionRecord) error
	ListByResource(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error)
	ListByWorkflow(ctx context.Context, kind entity.WorkflowKind, workflowID int64) ([]*entity.TransitionRecord, error)
}
