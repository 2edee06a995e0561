package http

import (
	"context"
	"sync"

	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

type mockCoordinator struct {
	submitFunc   func(ctx context.Context, req workflow.SubmitLoanRequest) (*entity.LoanRecord, error)
	approveFunc  func(ctx context.Context, loanID, approverID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
	rejectFunc   func(ctx context.Context, loanID, approverID int64, reason string, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
	checkOutFunc func(ctx context.Context, loanID, operatorID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
	returnFunc   func(ctx context.Context, loanID, operatorID int64, details workflow.ReturnDetails, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
	createFunc   func(ctx context.Context, req workflow.CreateTaskRequest) (*entity.MaintenanceRecord, error)
	startFunc    func(ctx context.Context, taskID, technicianID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
	completeFunc func(ctx context.Context, taskID int64, req workflow.CompleteTaskRequest, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error)
}

func (m *mockCoordinator) SubmitLoan(ctx context.Context, req workflow.SubmitLoanRequest) (*entity.LoanRecord, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return &entity.LoanRecord{ID: 1, ResourceID: req.ResourceID, RequesterID: req.RequesterID}, nil
}

func (m *mockCoordinator) ApproveLoan(ctx context.Context, loanID, approverID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.approveFunc != nil {
		return m.approveFunc(ctx, loanID, approverID, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: loanID}, nil
}

func (m *mockCoordinator) RejectLoan(ctx context.Context, loanID, approverID int64, reason string, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.rejectFunc != nil {
		return m.rejectFunc(ctx, loanID, approverID, reason, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: loanID}, nil
}

func (m *mockCoordinator) CheckOutLoan(ctx context.Context, loanID, operatorID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.checkOutFunc != nil {
		return m.checkOutFunc(ctx, loanID, operatorID, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: loanID}, nil
}

func (m *mockCoordinator) ReturnLoan(ctx context.Context, loanID, operatorID int64, details workflow.ReturnDetails, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.returnFunc != nil {
		return m.returnFunc(ctx, loanID, operatorID, details, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: loanID}, nil
}

func (m *mockCoordinator) CreateMaintenanceTask(ctx context.Context, req workflow.CreateTaskRequest) (*entity.MaintenanceRecord, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &entity.MaintenanceRecord{ID: 1, ResourceID: req.ResourceID}, nil
}

func (m *mockCoordinator) StartMaintenanceTask(ctx context.Context, taskID, technicianID int64, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, taskID, technicianID, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: taskID}, nil
}

func (m *mockCoordinator) CompleteMaintenanceTask(ctx context.Context, taskID int64, req workflow.CompleteTaskRequest, opts ...workflow.TransitionOption) (*workflow.TransitionResult, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, taskID, req, opts...)
	}
	return &workflow.TransitionResult{WorkflowID: taskID}, nil
}

type mockInventory struct {
	createFunc      func(ctx context.Context, req service.CreateResourceRequest) (*service.ResourceView, error)
	getResourceFunc func(ctx context.Context, id int64) (*service.ResourceView, error)
	listFunc        func(ctx context.Context, status string, limit, offset int) ([]*service.ResourceView, error)
	getLoanFunc     func(ctx context.Context, id int64) (*service.LoanView, error)
	listLoansFunc   func(ctx context.Context, req service.ListLoansRequest) ([]*service.LoanView, error)
	getTaskFunc     func(ctx context.Context, id int64) (*service.MaintenanceView, error)
	listTasksFunc   func(ctx context.Context, resourceID int64, limit int) ([]*service.MaintenanceView, error)
	historyFunc     func(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error)
}

func (m *mockInventory) CreateResource(ctx context.Context, req service.CreateResourceRequest) (*service.ResourceView, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &service.ResourceView{Resource: &entity.Resource{ID: 1, Code: req.Code}, Status: "idle"}, nil
}

func (m *mockInventory) GetResource(ctx context.Context, id int64) (*service.ResourceView, error) {
	if m.getResourceFunc != nil {
		return m.getResourceFunc(ctx, id)
	}
	return &service.ResourceView{Resource: &entity.Resource{ID: id}, Status: "idle"}, nil
}

func (m *mockInventory) ListResources(ctx context.Context, status string, limit, offset int) ([]*service.ResourceView, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockInventory) GetLoan(ctx context.Context, id int64) (*service.LoanView, error) {
	if m.getLoanFunc != nil {
		return m.getLoanFunc(ctx, id)
	}
	return &service.LoanView{LoanRecord: &entity.LoanRecord{ID: id}, Status: "pending"}, nil
}

func (m *mockInventory) ListLoans(ctx context.Context, req service.ListLoansRequest) ([]*service.LoanView, error) {
	if m.listLoansFunc != nil {
		return m.listLoansFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockInventory) GetMaintenanceTask(ctx context.Context, id int64) (*service.MaintenanceView, error) {
	if m.getTaskFunc != nil {
		return m.getTaskFunc(ctx, id)
	}
	return &service.MaintenanceView{MaintenanceRecord: &entity.MaintenanceRecord{ID: id}, Status: "created"}, nil
}

func (m *mockInventory) ListMaintenanceTasks(ctx context.Context, resourceID int64, limit int) ([]*service.MaintenanceView, error) {
	if m.listTasksFunc != nil {
		return m.listTasksFunc(ctx, resourceID, limit)
	}
	return nil, nil
}

func (m *mockInventory) History(ctx context.Context, resourceID int64, limit int) ([]*entity.TransitionRecord, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, resourceID, limit)
	}
	return nil, nil
}

type mockCatalog struct {
	refreshFunc func(ctx context.Context) error
	refreshed   int
}

func (m *mockCatalog) Load(ctx context.Context) error { return nil }

func (m *mockCatalog) Refresh(ctx context.Context) error {
	m.refreshed++
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx)
	}
	return nil
}

func (m *mockCatalog) Resolve(ctx context.Context, domain entity.Domain, name string) (int64, error) {
	return 1, nil
}

func (m *mockCatalog) Name(domain entity.Domain, id int64) (string, bool) {
	return "", false
}

func (m *mockCatalog) Entries(domain entity.Domain) []entity.StatusEntry {
	return []entity.StatusEntry{{Domain: domain, ID: 1, Name: "first"}}
}

type mockHealth struct {
	err error
}

func (m *mockHealth) Ping(ctx context.Context) error {
	return m.err
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}
