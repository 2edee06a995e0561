package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// workflowRow is the part of a loan or task the generic transition reads
type workflowRow struct {
	resourceID int64
	statusID   int64
	actorID    int64 // default actor when the caller supplies none
	kind       entity.MaintenanceKind
}

// transition describes one guarded move of a workflow record and its resource
type transition struct {
	kind    entity.WorkflowKind
	id      int64
	actorID int64
	trigger domainwf.Trigger
	from    domainwf.State
	// outcome selects the target for TriggerComplete
	outcome domainwf.State
	opts    transitionOptions
	remarks string

	build func(domainwf.State) domainwf.StateMachine
	// targets are the states the trigger may reach, resolved up front
	targets []domainwf.State
	// resourceNames are every resource status this move may read or write
	resourceNames []string
	load          func(ctx context.Context) (*workflowRow, error)
	// resourceMove names the expected and new resource status
	resourceMove func(row *workflowRow, to domainwf.State) (string, string)
	// apply runs the conditional workflow update including its side fields
	apply          func(ctx context.Context, expectedID, nextID int64) (bool, error)
	resourceUpdate entity.ResourceUpdate
}

func (t *transition) domain() entity.Domain {
	if t.kind == entity.WorkflowLoan {
		return entity.DomainLoan
	}
	return entity.DomainMaintenance
}

// run executes the transition algorithm:
//  1. resolve every status name up front
//  2. open a transaction
//  3. re-read workflow and resource status and check them against expectations
//  4. conditional workflow update
//  5. compare-and-set on the resource
//  6. side fields ride on the updates of 4 and 5, history row in the same tx
//  7. commit, then publish
func (c *coordinator) run(ctx context.Context, t *transition) (result *TransitionResult, err error) {
	ctx, span := c.tracer.Start(ctx, "workflow."+string(t.kind)+"."+t.trigger.String(),
		trace.WithAttributes(
			attribute.String("workflow.kind", string(t.kind)),
			attribute.Int64("workflow.id", t.id),
			attribute.String("workflow.trigger", t.trigger.String()),
		))
	defer func() {
		c.finish(ctx, span, string(t.kind), t.trigger.String(), err)
	}()

	// 1
	workflowIDs, err := c.resolveStates(ctx, t.domain(), append([]domainwf.State{t.from}, t.targets...))
	if err != nil {
		return nil, err
	}
	resourceIDs, err := c.resolveNames(ctx, entity.DomainResource, t.resourceNames)
	if err != nil {
		return nil, err
	}

	guardCtx := ctx
	if t.outcome != "" {
		guardCtx = domainwf.WithOutcome(ctx, t.outcome)
	}

	// 2
	err = c.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		// 3
		row, err := t.load(txCtx)
		if err != nil {
			return err
		}
		if t.opts.resourceID != 0 && row.resourceID != t.opts.resourceID {
			return fmt.Errorf("%w: %s %d belongs to resource %d, not %d",
				domainwf.ErrStateConflict, t.kind, t.id, row.resourceID, t.opts.resourceID)
		}
		if row.statusID != workflowIDs[t.from] {
			return fmt.Errorf("%w: %s %d is %s, expected %s",
				domainwf.ErrStateConflict, t.kind, t.id, c.statusName(t.domain(), row.statusID), t.from)
		}

		machine := t.build(t.from)
		if err := machine.Fire(guardCtx, t.trigger); err != nil {
			if errors.Is(err, domainwf.ErrGuardFailed) {
				return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
			}
			return fmt.Errorf("%w: %v", domainwf.ErrStateConflict, err)
		}
		to := machine.State()
		toID, ok := workflowIDs[to]
		if !ok {
			return fmt.Errorf("%w: %s status %q", domainwf.ErrUnknownStatus, t.domain(), to)
		}

		resourceFrom, resourceTo := t.resourceMove(row, to)
		currentResource, err := c.repos.Resources.GetStatus(txCtx, row.resourceID)
		if err != nil {
			return err
		}
		if currentResource != resourceIDs[resourceFrom] {
			return fmt.Errorf("%w: resource %d is %s, expected %s",
				domainwf.ErrStateConflict, row.resourceID, c.statusName(entity.DomainResource, currentResource), resourceFrom)
		}

		// 4
		ok, err = t.apply(txCtx, workflowIDs[t.from], toID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %d changed concurrently", domainwf.ErrStateConflict, t.kind, t.id)
		}

		// 5
		ok, err = c.repos.Resources.CompareAndSetStatus(txCtx, row.resourceID, currentResource, resourceIDs[resourceTo], t.resourceUpdate)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: resource %d changed concurrently", domainwf.ErrStateConflict, row.resourceID)
		}

		// 6
		actor := t.actorID
		if actor == 0 {
			actor = row.actorID
		}
		at := c.now().UTC()
		if err := c.repos.History.Create(txCtx, &entity.TransitionRecord{
			WorkflowKind:       t.kind,
			WorkflowID:         t.id,
			ResourceID:         row.resourceID,
			ActorID:            actor,
			Trigger:            t.trigger.String(),
			FromStatus:         string(t.from),
			ToStatus:           string(to),
			ResourceFromStatus: resourceFrom,
			ResourceToStatus:   resourceTo,
			Remarks:            t.remarks,
			OccurredAt:         at,
		}); err != nil {
			return err
		}

		result = &TransitionResult{
			Kind:         t.kind,
			WorkflowID:   t.id,
			ResourceID:   row.resourceID,
			Trigger:      t.trigger,
			From:         t.from,
			To:           to,
			ResourceFrom: resourceFrom,
			ResourceTo:   resourceTo,
			At:           at,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 7
	c.logger.Info("Workflow transitioned",
		"kind", t.kind,
		"workflow_id", t.id,
		"resource_id", result.ResourceID,
		"trigger", t.trigger,
		"from", result.From,
		"to", result.To,
		"resource_to", result.ResourceTo,
	)
	c.publish(ctx, event.TypeWorkflowTransitioned, result.WorkflowID, result.ResourceID, map[string]interface{}{
		"kind":          string(result.Kind),
		"trigger":       result.Trigger.String(),
		"from":          string(result.From),
		"to":            string(result.To),
		"resource_from": result.ResourceFrom,
		"resource_to":   result.ResourceTo,
	})
	return result, nil
}

// finish records the outcome of an operation on its span and counters
func (c *coordinator) finish(ctx context.Context, span trace.Span, kind, trigger string, err error) {
	defer span.End()
	c.metrics.record(ctx, kind, trigger, err)

	span.SetAttributes(attribute.String("result", resultOf(err)))
	if err == nil {
		return
	}
	span.RecordError(err)
	if errors.Is(err, domainwf.ErrStateConflict) || errors.Is(err, domainwf.ErrValidation) || errors.Is(err, domainwf.ErrNotFound) {
		// expected business outcomes, not faults
		return
	}
	span.SetStatus(codes.Error, err.Error())
	if !errors.Is(err, domainwf.ErrUnknownStatus) {
		// UnknownStatus is already logged by the catalog
		c.logger.Error("Workflow operation failed", "kind", kind, "trigger", trigger, "error", err)
	}
}

func (c *coordinator) resolveStates(ctx context.Context, domain entity.Domain, states []domainwf.State) (map[domainwf.State]int64, error) {
	ids := make(map[domainwf.State]int64, len(states))
	for _, s := range states {
		if _, done := ids[s]; done {
			continue
		}
		id, err := c.catalog.Resolve(ctx, domain, string(s))
		if err != nil {
			return nil, err
		}
		ids[s] = id
	}
	return ids, nil
}

func (c *coordinator) resolveNames(ctx context.Context, domain entity.Domain, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		if _, done := ids[name]; done {
			continue
		}
		id, err := c.catalog.Resolve(ctx, domain, name)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

func (c *coordinator) openStateIDs(ctx context.Context, domain entity.Domain, states []domainwf.State) ([]int64, error) {
	ids, err := c.resolveStates(ctx, domain, states)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(states))
	for _, s := range states {
		out = append(out, ids[s])
	}
	return out, nil
}

func (c *coordinator) statusName(domain entity.Domain, id int64) string {
	if name, ok := c.catalog.Name(domain, id); ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

// ensureNoOpenWorkflow fails with ErrStateConflict when resourceID already
// has an open loan or task. Callers must hold the resource row lock.
func (c *coordinator) ensureNoOpenWorkflow(ctx context.Context, resourceID int64, openLoans, openTasks []int64) error {
	n, err := c.repos.Loans.CountOpen(ctx, resourceID, openLoans)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: resource %d has an open loan", domainwf.ErrStateConflict, resourceID)
	}

	n, err = c.repos.Maintenance.CountOpen(ctx, resourceID, openTasks)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: resource %d has an open maintenance task", domainwf.ErrStateConflict, resourceID)
	}
	return nil
}

func (c *coordinator) publish(ctx context.Context, typ event.Type, workflowID, resourceID int64, payload map[string]interface{}) {
	if c.dispatcher == nil {
		return
	}
	c.dispatcher.DispatchAsync(ctx, event.NewEvent(typ, workflowID, resourceID, payload))
}

func validate(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	return nil
}

func requirePositive(field string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive", domainwf.ErrValidation, field)
	}
	return nil
}
