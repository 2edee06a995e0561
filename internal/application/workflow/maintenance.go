package workflow

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// CreateMaintenanceTask opens a repair or service task and pulls the
// resource out of circulation
func (c *coordinator) CreateMaintenanceTask(ctx context.Context, req CreateTaskRequest) (_ *entity.MaintenanceRecord, err error) {
	ctx, span := c.tracer.Start(ctx, "workflow.maintenance.create",
		trace.WithAttributes(
			attribute.Int64("resource.id", req.ResourceID),
			attribute.String("maintenance.kind", string(req.Kind)),
		))
	defer func() {
		c.finish(ctx, span, string(entity.WorkflowMaintenance), "create", err)
	}()

	req.ProblemDescription = utils.SanitizeString(req.ProblemDescription)
	req.Notes = utils.SanitizeString(req.Notes)
	if err := validate(req); err != nil {
		return nil, err
	}

	createdID, err := c.catalog.Resolve(ctx, entity.DomainMaintenance, string(domainwf.StateCreated))
	if err != nil {
		return nil, err
	}
	target := req.Kind.ActiveResourceStatus()
	resourceIDs, err := c.resolveNames(ctx, entity.DomainResource, append(slices.Clone(maintainableStatuses), target))
	if err != nil {
		return nil, err
	}
	openLoans, err := c.openStateIDs(ctx, entity.DomainLoan, domainwf.OpenLoanStates())
	if err != nil {
		return nil, err
	}
	openTasks, err := c.openStateIDs(ctx, entity.DomainMaintenance, domainwf.OpenMaintenanceStates())
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	task := &entity.MaintenanceRecord{
		ResourceID:         req.ResourceID,
		Kind:               req.Kind,
		TechnicianID:       req.TechnicianID,
		StatusID:           createdID,
		CreatedAt:          now,
		ProblemDescription: req.ProblemDescription,
	}
	if req.Notes != "" {
		task.Notes = &req.Notes
	}

	var resourceFrom string
	err = c.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := c.repos.Resources.GetStatus(txCtx, req.ResourceID)
		if err != nil {
			return err
		}
		resourceFrom = c.statusName(entity.DomainResource, current)
		allowed := false
		for _, name := range maintainableStatuses {
			if resourceIDs[name] == current {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: resource %d is %s and cannot enter maintenance",
				domainwf.ErrStateConflict, req.ResourceID, resourceFrom)
		}

		ok, err := c.repos.Resources.CompareAndSetStatus(txCtx, req.ResourceID, current, resourceIDs[target], entity.ResourceUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: resource %d changed concurrently", domainwf.ErrStateConflict, req.ResourceID)
		}

		if err := c.ensureNoOpenWorkflow(txCtx, req.ResourceID, openLoans, openTasks); err != nil {
			return err
		}

		task.ID = 0
		if err := c.repos.Maintenance.Create(txCtx, task); err != nil {
			return err
		}

		return c.repos.History.Create(txCtx, &entity.TransitionRecord{
			WorkflowKind:       entity.WorkflowMaintenance,
			WorkflowID:         task.ID,
			ResourceID:         req.ResourceID,
			ActorID:            req.TechnicianID,
			Trigger:            "create",
			ToStatus:           string(domainwf.StateCreated),
			ResourceFromStatus: resourceFrom,
			ResourceToStatus:   target,
			Remarks:            req.ProblemDescription,
			OccurredAt:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Maintenance task created",
		"task_id", task.ID,
		"resource_id", task.ResourceID,
		"kind", task.Kind,
		"resource_from", resourceFrom,
		"resource_to", target,
	)
	c.publish(ctx, event.TypeMaintenanceCreated, task.ID, task.ResourceID, map[string]interface{}{
		"kind":          string(task.Kind),
		"technician_id": task.TechnicianID,
	})
	return task, nil
}

// StartMaintenanceTask marks a created task as in progress. The resource
// keeps its maintenance status.
func (c *coordinator) StartMaintenanceTask(ctx context.Context, taskID, technicianID int64, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("task_id", taskID); err != nil {
		return nil, err
	}
	if err := requirePositive("technician_id", technicianID); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	t := c.maintenanceTransition(taskID, technicianID, domainwf.TriggerStart, domainwf.StateCreated, domainwf.StateInProgress,
		entity.MaintenanceUpdate{StartedAt: &now})
	for _, opt := range opts {
		opt(&t.opts)
	}
	return c.run(ctx, t)
}

// CompleteMaintenanceTask closes an in-progress task. The outcome decides
// where the resource goes: fit_for_use returns it to idle, the others keep
// it out of circulation.
func (c *coordinator) CompleteMaintenanceTask(ctx context.Context, taskID int64, req CompleteTaskRequest, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("task_id", taskID); err != nil {
		return nil, err
	}
	req.Outcome = utils.SanitizeString(req.Outcome)
	req.Notes = utils.SanitizeString(req.Notes)
	req.ActionsTaken = utils.SanitizeString(req.ActionsTaken)
	if err := validate(req); err != nil {
		return nil, err
	}

	// A name missing from the catalog is a configuration defect; a cataloged
	// name that is not an outcome is a caller mistake.
	if _, err := c.catalog.Resolve(ctx, entity.DomainMaintenance, req.Outcome); err != nil {
		return nil, err
	}
	outcome := domainwf.State(req.Outcome)
	if !outcome.IsOutcome() {
		return nil, fmt.Errorf("%w: %q is not a completion outcome", domainwf.ErrValidation, req.Outcome)
	}

	now := c.now().UTC()
	update := entity.MaintenanceUpdate{
		CompletedAt:   &now,
		Cost:          req.Cost,
		ReplacedParts: req.ReplacedParts,
	}
	if req.Notes != "" {
		update.Notes = &req.Notes
	}
	if req.ActionsTaken != "" {
		update.ActionsTaken = &req.ActionsTaken
	}

	t := c.maintenanceTransition(taskID, 0, domainwf.TriggerComplete, domainwf.StateInProgress, outcome, update)
	t.outcome = outcome
	t.remarks = req.Notes
	for _, opt := range opts {
		opt(&t.opts)
	}
	return c.run(ctx, t)
}

func (c *coordinator) maintenanceTransition(
	taskID, actorID int64,
	trigger domainwf.Trigger,
	from, to domainwf.State,
	update entity.MaintenanceUpdate,
) *transition {
	names := []string{entity.ResourceUnderRepair, entity.ResourceUnderService}
	if to.IsOutcome() {
		names = append(names, outcomeResourceStatus[to])
	}

	return &transition{
		kind:          entity.WorkflowMaintenance,
		id:            taskID,
		actorID:       actorID,
		trigger:       trigger,
		from:          from,
		targets:       []domainwf.State{to},
		build:         BuildMaintenanceStateMachine,
		resourceNames: names,
		load: func(ctx context.Context) (*workflowRow, error) {
			task, err := c.repos.Maintenance.GetByID(ctx, taskID)
			if err != nil {
				return nil, err
			}
			if task == nil {
				return nil, fmt.Errorf("%w: maintenance task %d", domainwf.ErrNotFound, taskID)
			}
			return &workflowRow{
				resourceID: task.ResourceID,
				statusID:   task.StatusID,
				actorID:    task.TechnicianID,
				kind:       task.Kind,
			}, nil
		},
		resourceMove: func(row *workflowRow, to domainwf.State) (string, string) {
			return maintenanceResourceStatus(row.kind, from), maintenanceResourceStatus(row.kind, to)
		},
		apply: func(ctx context.Context, expectedID, nextID int64) (bool, error) {
			return c.repos.Maintenance.CompareAndSetStatus(ctx, taskID, expectedID, nextID, update)
		},
	}
}
