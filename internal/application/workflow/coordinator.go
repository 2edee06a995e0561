package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
)

const instrumentationName = "github.com/garyjia/toolcrib/internal/application/workflow"

// Coordinator moves loans, maintenance tasks and their resources through
// the lifecycle. Every operation is one transaction; a stale expectation
// about the stored state fails with ErrStateConflict and changes nothing.
type Coordinator interface {
	SubmitLoan(ctx context.Context, req SubmitLoanRequest) (*entity.LoanRecord, error)
	ApproveLoan(ctx context.Context, loanID, approverID int64, opts ...TransitionOption) (*TransitionResult, error)
	RejectLoan(ctx context.Context, loanID, approverID int64, reason string, opts ...TransitionOption) (*TransitionResult, error)
	CheckOutLoan(ctx context.Context, loanID, operatorID int64, opts ...TransitionOption) (*TransitionResult, error)
	ReturnLoan(ctx context.Context, loanID, operatorID int64, details ReturnDetails, opts ...TransitionOption) (*TransitionResult, error)

	CreateMaintenanceTask(ctx context.Context, req CreateTaskRequest) (*entity.MaintenanceRecord, error)
	StartMaintenanceTask(ctx context.Context, taskID, technicianID int64, opts ...TransitionOption) (*TransitionResult, error)
	CompleteMaintenanceTask(ctx context.Context, taskID int64, req CompleteTaskRequest, opts ...TransitionOption) (*TransitionResult, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// StatusResolver is the part of the status catalog the coordinator needs
type StatusResolver interface {
	Resolve(ctx context.Context, domain entity.Domain, name string) (int64, error)
	Name(domain entity.Domain, id int64) (string, bool)
}

// SubmitLoanRequest opens a loan on an idle resource
type SubmitLoanRequest struct {
	ResourceID           int64     `json:"resource_id" validate:"required,gt=0"`
	RequesterID          int64     `json:"requester_id" validate:"required,gt=0"`
	ExpectedReturnAt     time.Time `json:"expected_return_at" validate:"required"`
	DestinationEquipment string    `json:"destination_equipment" validate:"max=100"`
	ProductionOrder      string    `json:"production_order" validate:"max=100"`
	EstimatedUsage       int64     `json:"estimated_usage" validate:"gte=0"`
	Remarks              string    `json:"remarks" validate:"max=1000"`
}

// ReturnDetails are the optional side effects of returning a resource
type ReturnDetails struct {
	UsageDelta int64  `json:"usage_delta" validate:"gte=0"`
	LocationID *int64 `json:"location_id"`
	Remarks    string `json:"remarks" validate:"max=1000"`
}

// CreateTaskRequest opens a maintenance task
type CreateTaskRequest struct {
	ResourceID         int64                  `json:"resource_id" validate:"required,gt=0"`
	TechnicianID       int64                  `json:"technician_id" validate:"required,gt=0"`
	Kind               entity.MaintenanceKind `json:"kind" validate:"required,oneof=repair service"`
	ProblemDescription string                 `json:"problem_description" validate:"required,max=2000"`
	Notes              string                 `json:"notes" validate:"max=2000"`
}

// CompleteTaskRequest closes a maintenance task with an outcome
type CompleteTaskRequest struct {
	Outcome       string               `json:"outcome" validate:"required"`
	Cost          *float64             `json:"cost" validate:"omitempty,gte=0"`
	Notes         string               `json:"notes" validate:"max=2000"`
	ActionsTaken  string               `json:"actions_taken" validate:"max=2000"`
	ReplacedParts entity.ReplacedParts `json:"replaced_parts" validate:"dive"`
}

// TransitionResult describes a committed transition
type TransitionResult struct {
	Kind         entity.WorkflowKind `json:"kind"`
	WorkflowID   int64               `json:"workflow_id"`
	ResourceID   int64               `json:"resource_id"`
	Trigger      domainwf.Trigger    `json:"trigger"`
	From         domainwf.State      `json:"from"`
	To           domainwf.State      `json:"to"`
	ResourceFrom string              `json:"resource_from"`
	ResourceTo   string              `json:"resource_to"`
	At           time.Time           `json:"at"`
}

// TransitionOption adds caller expectations to a transition
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	resourceID int64
}

// ExpectResource fails the transition with ErrStateConflict unless the
// workflow record belongs to resourceID
func ExpectResource(resourceID int64) TransitionOption {
	return func(o *transitionOptions) {
		o.resourceID = resourceID
	}
}

// Repositories bundles the stores the coordinator writes
type Repositories struct {
	Resources   port.ResourceRepository
	Loans       port.LoanRepository
	Maintenance port.MaintenanceRepository
	History     port.HistoryRepository
}

type coordinator struct {
	repos      Repositories
	tx         port.TransactionManager
	catalog    StatusResolver
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time

	tracer  trace.Tracer
	metrics *instruments
}

// Option configures the coordinator
type Option func(*coordinator)

// WithDispatcher emits events after each commit
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(c *coordinator) {
		c.dispatcher = d
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *coordinator) {
		c.now = now
	}
}

// WithTracerProvider replaces the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *coordinator) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider replaces the global meter provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *coordinator) {
		c.metrics = newInstruments(mp.Meter(instrumentationName))
	}
}

// NewCoordinator creates a new workflow coordinator
func NewCoordinator(
	repos Repositories,
	tx port.TransactionManager,
	catalog StatusResolver,
	logger Logger,
	opts ...Option,
) Coordinator {
	c := &coordinator{
		repos:   repos,
		tx:      tx,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	if c.metrics == nil {
		c.metrics = newInstruments(otel.Meter(instrumentationName))
	}

	return c
}

var _ Coordinator = (*coordinator)(nil)
