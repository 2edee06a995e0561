package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"github.com/garyjia/toolcrib/internal/application/dispatcher"
	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/repository"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/toolcrib/pkg/database"
	"github.com/garyjia/toolcrib/pkg/utils"
)

type env struct {
	db        *database.DB
	tx        *sqldb.DB
	catalog   service.StatusCatalog
	resources *repository.ResourceRepository
	loans     *repository.LoanRepository
	tasks     *repository.MaintenanceRepository
	history   *repository.HistoryRepository
	coord     workflow.Coordinator
}

type envOptions struct {
	maxConns  int
	txOpts    []sqldb.Option
	resources func(port.ResourceRepository) port.ResourceRepository
	coordOpts []workflow.Option
}

func newEnv(t *testing.T, o envOptions) *env {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	if o.maxConns == 0 {
		o.maxConns = 4
	}

	db, err := database.Open(ctx, database.Config{
		Driver:   database.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "toolcrib.db"),
		MinConns: 1,
		MaxConns: o.maxConns,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run(ctx))

	e := &env{
		db:        db,
		tx:        sqldb.NewDB(db.DB, logger, o.txOpts...),
		resources: repository.NewResourceRepository(db.DB, logger),
		loans:     repository.NewLoanRepository(db.DB, logger),
		tasks:     repository.NewMaintenanceRepository(db.DB, logger),
		history:   repository.NewHistoryRepository(db.DB, logger),
	}
	kv := utils.NewKVLogger(logger)
	e.catalog = service.NewStatusCatalog(repository.NewCatalogRepository(db.DB, logger), kv)
	require.NoError(t, e.catalog.Load(ctx))

	var resources port.ResourceRepository = e.resources
	if o.resources != nil {
		resources = o.resources(resources)
	}
	e.coord = workflow.NewCoordinator(workflow.Repositories{
		Resources:   resources,
		Loans:       e.loans,
		Maintenance: e.tasks,
		History:     e.history,
	}, e.tx, e.catalog, kv, o.coordOpts...)
	return e
}

func (e *env) id(t *testing.T, domain entity.Domain, name string) int64 {
	t.Helper()
	id, err := e.catalog.Resolve(context.Background(), domain, name)
	require.NoError(t, err)
	return id
}

func (e *env) newResource(t *testing.T, code, status string) int64 {
	t.Helper()
	res := &entity.Resource{
		Code:          code,
		Name:          "Stamping die " + code,
		StatusID:      e.id(t, entity.DomainResource, status),
		LifetimeLimit: 50000,
	}
	require.NoError(t, e.resources.Create(context.Background(), res))
	return res.ID
}

func (e *env) resourceStatus(t *testing.T, id int64) string {
	t.Helper()
	res, err := e.resources.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, res)
	name, ok := e.catalog.Name(entity.DomainResource, res.StatusID)
	require.True(t, ok)
	return name
}

func (e *env) loan(t *testing.T, id int64) (*entity.LoanRecord, string) {
	t.Helper()
	loan, err := e.loans.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, loan)
	name, _ := e.catalog.Name(entity.DomainLoan, loan.StatusID)
	return loan, name
}

func (e *env) submit(t *testing.T, resourceID, requesterID int64) *entity.LoanRecord {
	t.Helper()
	loan, err := e.coord.SubmitLoan(context.Background(), workflow.SubmitLoanRequest{
		ResourceID:           resourceID,
		RequesterID:          requesterID,
		ExpectedReturnAt:     time.Now().Add(72 * time.Hour),
		DestinationEquipment: "PRESS-04",
		ProductionOrder:      "PO-1001",
		EstimatedUsage:       500,
	})
	require.NoError(t, err)
	return loan
}

func TestApproveRace_ExactlyOneWins(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	var wins, conflicts atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for approver := int64(7); approver <= 8; approver++ {
		g.Go(func() error {
			_, err := e.coord.ApproveLoan(gctx, l1.ID, approver)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domainwf.ErrStateConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), conflicts.Load())

	_, status := e.loan(t, l1.ID)
	assert.Equal(t, "approved", status)
	assert.Equal(t, entity.ResourceCheckedOut, e.resourceStatus(t, r1))

	history, err := e.history.ListByWorkflow(ctx, entity.WorkflowLoan, l1.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "submit plus one approve")
}

func TestLoanScenario_SecondApproveConflicts(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)

	l1 := e.submit(t, r1, 42)
	_, status := e.loan(t, l1.ID)
	assert.Equal(t, "pending", status)
	assert.Equal(t, entity.ResourceIdle, e.resourceStatus(t, r1))

	result, err := e.coord.ApproveLoan(ctx, l1.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, result.From)
	assert.Equal(t, domainwf.StateApproved, result.To)
	assert.Equal(t, entity.ResourceIdle, result.ResourceFrom)
	assert.Equal(t, entity.ResourceCheckedOut, result.ResourceTo)

	loan, status := e.loan(t, l1.ID)
	assert.Equal(t, "approved", status)
	require.NotNil(t, loan.ApproverID)
	assert.Equal(t, int64(7), *loan.ApproverID)
	assert.NotNil(t, loan.ApprovedAt)
	assert.Equal(t, entity.ResourceCheckedOut, e.resourceStatus(t, r1))

	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)

	_, status = e.loan(t, l1.ID)
	assert.Equal(t, "approved", status)
	assert.Equal(t, entity.ResourceCheckedOut, e.resourceStatus(t, r1))
}

func TestLoanRoundTrip(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	_, err := e.coord.ApproveLoan(ctx, l1.ID, 7)
	require.NoError(t, err)
	_, err = e.coord.CheckOutLoan(ctx, l1.ID, 42, workflow.ExpectResource(r1))
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceCheckedOut, e.resourceStatus(t, r1))

	loc := int64(3)
	_, err = e.coord.ReturnLoan(ctx, l1.ID, 42, workflow.ReturnDetails{UsageDelta: 480, LocationID: &loc})
	require.NoError(t, err)

	loan, status := e.loan(t, l1.ID)
	assert.Equal(t, "returned", status)
	require.NotNil(t, loan.CheckedOutAt)
	require.NotNil(t, loan.ReturnedAt)
	assert.False(t, loan.ReturnedAt.Before(*loan.CheckedOutAt), "checked_out_at must not be after returned_at")
	assert.Equal(t, int64(42), *loan.CheckedOutBy)
	assert.Equal(t, int64(42), *loan.ReturnedBy)

	res, err := e.resources.GetByID(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceIdle, e.resourceStatus(t, r1))
	assert.Equal(t, int64(480), res.CumulativeUsage)
	require.NotNil(t, res.LocationID)
	assert.Equal(t, loc, *res.LocationID)

	history, err := e.history.ListByWorkflow(ctx, entity.WorkflowLoan, l1.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	var triggers []string
	for _, h := range history {
		triggers = append(triggers, h.Trigger)
	}
	assert.Equal(t, []string{"submit", "approve", "checkout", "return"}, triggers)

	// The resource is free for the next loan.
	e.submit(t, r1, 43)
}

func TestLoanRejection(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	_, err := e.coord.RejectLoan(ctx, l1.ID, 7, "die due for service")
	require.NoError(t, err)

	loan, status := e.loan(t, l1.ID)
	assert.Equal(t, "rejected", status)
	require.NotNil(t, loan.Remarks)
	assert.Equal(t, "die due for service", *loan.Remarks)
	assert.Equal(t, int64(7), *loan.ApproverID)
	assert.Equal(t, entity.ResourceIdle, e.resourceStatus(t, r1))

	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)

	// A rejected loan is closed, so a new one may be submitted.
	e.submit(t, r1, 42)
}

func TestSubmitLoan_OneOpenWorkflowPerResource(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	e.submit(t, r1, 42)

	_, err := e.coord.SubmitLoan(ctx, workflow.SubmitLoanRequest{
		ResourceID:       r1,
		RequesterID:      43,
		ExpectedReturnAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)

	_, err = e.coord.CreateMaintenanceTask(ctx, workflow.CreateTaskRequest{
		ResourceID:         r1,
		TechnicianID:       9,
		Kind:               entity.MaintenanceService,
		ProblemDescription: "scheduled service",
	})
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)
	assert.Equal(t, entity.ResourceIdle, e.resourceStatus(t, r1), "failed create must roll back")

	n, err := e.loans.CountOpen(ctx, r1, []int64{
		e.id(t, entity.DomainLoan, "pending"),
		e.id(t, entity.DomainLoan, "approved"),
		e.id(t, entity.DomainLoan, "checked_out"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// failingResources fails the resource compare-and-set after the workflow
// record has already been updated in the same transaction
type failingResources struct {
	port.ResourceRepository
}

func (f failingResources) CompareAndSetStatus(ctx context.Context, id, expected, next int64, update entity.ResourceUpdate) (bool, error) {
	return false, errors.New("disk I/O error")
}

func TestTransitionIsAtomic(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	broken := workflow.NewCoordinator(workflow.Repositories{
		Resources:   failingResources{e.resources},
		Loans:       e.loans,
		Maintenance: e.tasks,
		History:     e.history,
	}, e.tx, e.catalog, utils.NewKVLogger(zap.NewNop()))

	_, err := broken.ApproveLoan(ctx, l1.ID, 7)
	require.Error(t, err)

	loan, status := e.loan(t, l1.ID)
	assert.Equal(t, "pending", status, "workflow update must roll back with the resource failure")
	assert.Nil(t, loan.ApproverID)
	assert.Equal(t, entity.ResourceIdle, e.resourceStatus(t, r1))

	history, err := e.history.ListByWorkflow(ctx, entity.WorkflowLoan, l1.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.NoError(t, err)
}

func TestResourceDivergence_IsConflict(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	r2 := e.newResource(t, "R2", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	_, err := e.coord.ApproveLoan(ctx, l1.ID, 7, workflow.ExpectResource(r2))
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)

	// Out-of-band change to the resource row.
	_, err = e.db.ExecContext(ctx, e.db.Rebind("UPDATE resource SET current_status_id = ? WHERE resource_id = ?"),
		e.id(t, entity.DomainResource, entity.ResourceUnderRepair), r1)
	require.NoError(t, err)

	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)
	_, status := e.loan(t, l1.ID)
	assert.Equal(t, "pending", status)
}

func TestMaintenanceLifecycle(t *testing.T) {
	tests := []struct {
		name         string
		kind         entity.MaintenanceKind
		outcome      string
		wantResource string
		canLoanAfter bool
	}{
		{"repair fit for use", entity.MaintenanceRepair, "fit_for_use", entity.ResourceIdle, true},
		{"service pending inspection", entity.MaintenanceService, "pending_inspection", entity.ResourceAwaitingService, false},
		{"repair awaiting parts", entity.MaintenanceRepair, "awaiting_parts", entity.ResourceAwaitingRepair, false},
		{"repair scrapped", entity.MaintenanceRepair, "scrapped", entity.ResourceScrapped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, envOptions{})
			ctx := context.Background()
			r1 := e.newResource(t, "R1", entity.ResourceIdle)

			task, err := e.coord.CreateMaintenanceTask(ctx, workflow.CreateTaskRequest{
				ResourceID:         r1,
				TechnicianID:       9,
				Kind:               tt.kind,
				ProblemDescription: "edge chipped after 40k strokes",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.kind.ActiveResourceStatus(), e.resourceStatus(t, r1))

			_, err = e.coord.SubmitLoan(ctx, workflow.SubmitLoanRequest{
				ResourceID: r1, RequesterID: 42, ExpectedReturnAt: time.Now().Add(time.Hour),
			})
			assert.ErrorIs(t, err, domainwf.ErrStateConflict)

			_, err = e.coord.StartMaintenanceTask(ctx, task.ID, 9)
			require.NoError(t, err)

			cost := 120.5
			result, err := e.coord.CompleteMaintenanceTask(ctx, task.ID, workflow.CompleteTaskRequest{
				Outcome:       tt.outcome,
				Cost:          &cost,
				ActionsTaken:  "reground edge",
				ReplacedParts: entity.ReplacedParts{{Name: "guide pin", Quantity: 2}},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantResource, result.ResourceTo)
			assert.Equal(t, tt.wantResource, e.resourceStatus(t, r1))

			stored, err := e.tasks.GetByID(ctx, task.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.CompletedAt)
			require.NotNil(t, stored.Cost)
			assert.Equal(t, cost, *stored.Cost)
			assert.Len(t, stored.ReplacedParts, 1)

			_, err = e.coord.SubmitLoan(ctx, workflow.SubmitLoanRequest{
				ResourceID: r1, RequesterID: 42, ExpectedReturnAt: time.Now().Add(time.Hour),
			})
			if tt.canLoanAfter {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domainwf.ErrStateConflict)
			}
		})
	}
}

func TestMaintenanceFromAwaitingRepair(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceAwaitingRepair)

	_, err := e.coord.CreateMaintenanceTask(ctx, workflow.CreateTaskRequest{
		ResourceID: r1, TechnicianID: 9, Kind: entity.MaintenanceRepair, ProblemDescription: "parts arrived",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ResourceUnderRepair, e.resourceStatus(t, r1))

	// A second task on the same resource is rejected.
	_, err = e.coord.CreateMaintenanceTask(ctx, workflow.CreateTaskRequest{
		ResourceID: r1, TechnicianID: 9, Kind: entity.MaintenanceRepair, ProblemDescription: "again",
	})
	assert.ErrorIs(t, err, domainwf.ErrStateConflict)
}

func TestPoolExhaustion_IsRetryable(t *testing.T) {
	e := newEnv(t, envOptions{
		maxConns: 1,
		txOpts:   []sqldb.Option{sqldb.WithAcquireTimeout(50 * time.Millisecond)},
	})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- e.tx.WithTransaction(ctx, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.ErrorIs(t, err, port.ErrPoolExhausted)
	assert.True(t, port.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)

	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	assert.NoError(t, err)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { d.Close() })

	got := make(chan *event.Event, 8)
	capture := func(ctx context.Context, evt *event.Event) error {
		got <- evt
		return nil
	}
	d.Subscribe(event.TypeLoanSubmitted, capture)
	d.Subscribe(event.TypeWorkflowTransitioned, capture)

	e := newEnv(t, envOptions{coordOpts: []workflow.Option{workflow.WithDispatcher(d)}})
	ctx := context.Background()
	r1 := e.newResource(t, "R1", entity.ResourceIdle)
	l1 := e.submit(t, r1, 42)

	_, err := e.coord.ApproveLoan(ctx, l1.ID, 7)
	require.NoError(t, err)
	_, err = e.coord.ApproveLoan(ctx, l1.ID, 7)
	require.ErrorIs(t, err, domainwf.ErrStateConflict)

	types := map[event.Type]int{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-got:
			types[evt.Type]++
			assert.Equal(t, r1, evt.ResourceID)
			assert.Equal(t, l1.ID, evt.WorkflowID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, 1, types[event.TypeLoanSubmitted])
	assert.Equal(t, 1, types[event.TypeWorkflowTransitioned])

	select {
	case evt := <-got:
		t.Fatalf("conflict published %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestAtMostOneOpenWorkflow drives random operation sequences and checks
// that no resource ever carries more than one open loan or task, and that
// each resource status matches its open workflow.
func TestAtMostOneOpenWorkflow(t *testing.T) {
	e := newEnv(t, envOptions{})
	ctx := context.Background()

	openLoans := []int64{
		e.id(t, entity.DomainLoan, "pending"),
		e.id(t, entity.DomainLoan, "approved"),
		e.id(t, entity.DomainLoan, "checked_out"),
	}
	openTasks := []int64{
		e.id(t, entity.DomainMaintenance, "created"),
		e.id(t, entity.DomainMaintenance, "in_progress"),
	}
	outcomes := []string{"fit_for_use", "pending_inspection", "failed_inspection", "awaiting_parts", "outsourced", "scrapped"}

	var seq atomic.Int64
	rapid.Check(t, func(rt *rapid.T) {
		var resources []int64
		for i := 0; i < 2; i++ {
			code := fmt.Sprintf("P%d", seq.Add(1))
			resources = append(resources, e.newResource(t, code, entity.ResourceIdle))
		}
		var loans, tasks []int64

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			res := rapid.SampledFrom(resources).Draw(rt, "resource")
			var err error
			switch op := rapid.IntRange(0, 7).Draw(rt, "op"); op {
			case 0:
				var loan *entity.LoanRecord
				loan, err = e.coord.SubmitLoan(ctx, workflow.SubmitLoanRequest{
					ResourceID: res, RequesterID: 42, ExpectedReturnAt: time.Now().Add(time.Hour),
				})
				if err == nil {
					loans = append(loans, loan.ID)
				}
			case 1, 2, 3, 4:
				if len(loans) == 0 {
					continue
				}
				id := rapid.SampledFrom(loans).Draw(rt, "loan")
				switch op {
				case 1:
					_, err = e.coord.ApproveLoan(ctx, id, 7)
				case 2:
					_, err = e.coord.RejectLoan(ctx, id, 7, "no")
				case 3:
					_, err = e.coord.CheckOutLoan(ctx, id, 42)
				case 4:
					_, err = e.coord.ReturnLoan(ctx, id, 42, workflow.ReturnDetails{UsageDelta: 10})
				}
			case 5:
				var task *entity.MaintenanceRecord
				kind := rapid.SampledFrom([]entity.MaintenanceKind{entity.MaintenanceRepair, entity.MaintenanceService}).Draw(rt, "kind")
				task, err = e.coord.CreateMaintenanceTask(ctx, workflow.CreateTaskRequest{
					ResourceID: res, TechnicianID: 9, Kind: kind, ProblemDescription: "check",
				})
				if err == nil {
					tasks = append(tasks, task.ID)
				}
			case 6, 7:
				if len(tasks) == 0 {
					continue
				}
				id := rapid.SampledFrom(tasks).Draw(rt, "task")
				if op == 6 {
					_, err = e.coord.StartMaintenanceTask(ctx, id, 9)
				} else {
					outcome := rapid.SampledFrom(outcomes).Draw(rt, "outcome")
					_, err = e.coord.CompleteMaintenanceTask(ctx, id, workflow.CompleteTaskRequest{Outcome: outcome})
				}
			}
			if err != nil && !errors.Is(err, domainwf.ErrStateConflict) {
				rt.Fatalf("unexpected error: %v", err)
			}
		}

		for _, res := range resources {
			nl, err := e.loans.CountOpen(ctx, res, openLoans)
			if err != nil {
				rt.Fatalf("count loans: %v", err)
			}
			nt, err := e.tasks.CountOpen(ctx, res, openTasks)
			if err != nil {
				rt.Fatalf("count tasks: %v", err)
			}
			if nl+nt > 1 {
				rt.Fatalf("resource %d has %d open loans and %d open tasks", res, nl, nt)
			}

			status := e.resourceStatus(t, res)
			switch {
			case nt == 1 && status != entity.ResourceUnderRepair && status != entity.ResourceUnderService:
				rt.Fatalf("resource %d with open task is %s", res, status)
			case nl == 1 && status != entity.ResourceIdle && status != entity.ResourceCheckedOut:
				rt.Fatalf("resource %d with open loan is %s", res, status)
			case nl == 0 && status == entity.ResourceCheckedOut:
				rt.Fatalf("resource %d is checked_out without a loan", res)
			}
		}
	})
}
