package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/workflow"
	"github.com/garyjia/toolcrib/pkg/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ResourceView is a resource with its status name resolved
type ResourceView struct {
	*entity.Resource
	Status string `json:"status"`
}

// LoanView is a loan with its status name resolved
type LoanView struct {
	*entity.LoanRecord
	Status string `json:"status"`
}

// MaintenanceView is a maintenance task with its status name resolved
type MaintenanceView struct {
	*entity.MaintenanceRecord
	Status string `json:"status"`
}

// CreateResourceRequest registers a new resource
type CreateResourceRequest struct {
	Code                string `json:"code" validate:"required,max=64"`
	Name                string `json:"name" validate:"max=200"`
	Status              string `json:"status"`
	LocationID          *int64 `json:"location_id"`
	LifetimeLimit       int64  `json:"lifetime_limit" validate:"gte=0"`
	MaintenanceInterval int64  `json:"maintenance_interval" validate:"gte=0"`
}

// ListLoansRequest filters ListLoans. Empty fields mean "any".
type ListLoansRequest struct {
	ResourceID int64
	Status     string
	Limit      int
	Offset     int
}

// InventoryService is the read side over resources and their workflows,
// plus administrative resource registration
type InventoryService interface {
	CreateResource(ctx context.Context, req CreateResourceRequest) (*ResourceView, error)
	GetResource(ctx context.Context, id int64) (*ResourceView, error)
	ListResources(ctx context.Context, status string, limit, offset int) ([]*ResourceView, error)
	GetLoan(ctx context.Context, id int64) (*LoanView, error)
	ListLoans(ctx context.Context, req ListLoansRequest) ([]*LoanView, error)
	GetMaintenanceTask(ctx context.Context, id int64) (*MaintenanceView, error)
	ListMaintenanceTasks(ctx context.Context, resourceID int64, limit int) ([]*MaintenanceView, error)
	History(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error)
}

type inventoryServiceImpl struct {
	resources   port.ResourceRepository
	loans       port.LoanRepository
	maintenance port.MaintenanceRepository
	history     port.HistoryRepository
	catalog     StatusCatalog
	logger      Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	resources port.ResourceRepository,
	loans port.LoanRepository,
	maintenance port.MaintenanceRepository,
	history port.HistoryRepository,
	catalog StatusCatalog,
	logger Logger,
) InventoryService {
	return &inventoryServiceImpl{
		resources:   resources,
		loans:       loans,
		maintenance: maintenance,
		history:     history,
		catalog:     catalog,
		logger:      logger,
	}
}

// CreateResource registers a resource, idle unless another status is named
func (s *inventoryServiceImpl) CreateResource(ctx context.Context, req CreateResourceRequest) (*ResourceView, error) {
	req.Code = utils.SanitizeString(req.Code)
	req.Name = utils.SanitizeString(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}

	status := req.Status
	if status == "" {
		status = entity.ResourceIdle
	}
	statusID, err := s.catalog.Resolve(ctx, entity.DomainResource, status)
	if err != nil {
		return nil, err
	}

	res := &entity.Resource{
		Code:                req.Code,
		Name:                req.Name,
		StatusID:            statusID,
		LocationID:          req.LocationID,
		LifetimeLimit:       req.LifetimeLimit,
		MaintenanceInterval: req.MaintenanceInterval,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.resources.Create(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info("Resource registered", "resource_id", res.ID, "code", res.Code, "status", status)
	return &ResourceView{Resource: res, Status: status}, nil
}

// GetResource returns one resource or ErrNotFound
func (s *inventoryServiceImpl) GetResource(ctx context.Context, id int64) (*ResourceView, error) {
	res, err := s.resources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: resource %d", workflow.ErrNotFound, id)
	}
	return s.resourceView(res), nil
}

// ListResources lists resources, optionally only those in status
func (s *inventoryServiceImpl) ListResources(ctx context.Context, status string, limit, offset int) ([]*ResourceView, error) {
	var statusID *int64
	if status != "" {
		id, err := s.catalog.Resolve(ctx, entity.DomainResource, status)
		if err != nil {
			return nil, err
		}
		statusID = &id
	}

	list, err := s.resources.List(ctx, statusID, pageSize(limit), max(offset, 0))
	if err != nil {
		return nil, err
	}

	out := make([]*ResourceView, len(list))
	for i, res := range list {
		out[i] = s.resourceView(res)
	}
	return out, nil
}

// GetLoan returns one loan or ErrNotFound
func (s *inventoryServiceImpl) GetLoan(ctx context.Context, id int64) (*LoanView, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, fmt.Errorf("%w: loan %d", workflow.ErrNotFound, id)
	}
	return s.loanView(loan), nil
}

// ListLoans lists loans newest first
func (s *inventoryServiceImpl) ListLoans(ctx context.Context, req ListLoansRequest) ([]*LoanView, error) {
	filter := port.LoanFilter{
		ResourceID: req.ResourceID,
		Limit:      pageSize(req.Limit),
		Offset:     max(req.Offset, 0),
	}
	if req.Status != "" {
		id, err := s.catalog.Resolve(ctx, entity.DomainLoan, req.Status)
		if err != nil {
			return nil, err
		}
		filter.StatusID = id
	}

	list, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*LoanView, len(list))
	for i, loan := range list {
		out[i] = s.loanView(loan)
	}
	return out, nil
}

// GetMaintenanceTask returns one task or ErrNotFound
func (s *inventoryServiceImpl) GetMaintenanceTask(ctx context.Context, id int64) (*MaintenanceView, error) {
	task, err := s.maintenance.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: maintenance task %d", workflow.ErrNotFound, id)
	}
	return s.maintenanceView(task), nil
}

// ListMaintenanceTasks lists a resource's tasks newest first
func (s *inventoryServiceImpl) ListMaintenanceTasks(ctx context.Context, resourceID int64, limit int) ([]*MaintenanceView, error) {
	list, err := s.maintenance.ListByResource(ctx, resourceID, pageSize(limit))
	if err != nil {
		return nil, err
	}

	out := make([]*MaintenanceView, len(list))
	for i, task := range list {
		out[i] = s.maintenanceView(task)
	}
	return out, nil
}

// History returns the newest transitions recorded against a resource
func (s *inventoryServiceImpl) History(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error) {
	return s.history.ListByResource(ctx, resourceID, pageSize(limit))
}

func (s *inventoryServiceImpl) resourceView(res *entity.Resource) *ResourceView {
	name, _ := s.catalog.Name(entity.DomainResource, res.StatusID)
	return &ResourceView{Resource: res, Status: name}
}

func (s *inventoryServiceImpl) loanView(loan *entity.LoanRecord) *LoanView {
	name, _ := s.catalog.Name(entity.DomainLoan, loan.StatusID)
	return &LoanView{LoanRecord: loan, Status: name}
}

func (s *inventoryServiceImpl) maintenanceView(task *entity.MaintenanceRecord) *MaintenanceView {
	name, _ := s.catalog.Name(entity.DomainMaintenance, task.StatusID)
	return &MaintenanceView{MaintenanceRecord: task, Status: name}
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}
