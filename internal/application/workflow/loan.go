package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/toolcrib/internal/domain/entity"
	"github.com/garyjia/toolcrib/internal/domain/event"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
	"github.com/garyjia/toolcrib/pkg/utils"
)

// SubmitLoan opens a pending loan. The resource must be idle with no open
// loan or task; it stays idle until the loan is approved.
func (c *coordinator) SubmitLoan(ctx context.Context, req SubmitLoanRequest) (_ *entity.LoanRecord, err error) {
	ctx, span := c.tracer.Start(ctx, "workflow.loan.submit",
		trace.WithAttributes(attribute.Int64("resource.id", req.ResourceID)))
	defer func() {
		c.finish(ctx, span, string(entity.WorkflowLoan), "submit", err)
	}()

	req.DestinationEquipment = utils.SanitizeString(req.DestinationEquipment)
	req.ProductionOrder = utils.SanitizeString(req.ProductionOrder)
	req.Remarks = utils.SanitizeString(req.Remarks)
	if err := validate(req); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	if !req.ExpectedReturnAt.After(now) {
		return nil, fmt.Errorf("%w: expected_return_at must be in the future", domainwf.ErrValidation)
	}

	pendingID, err := c.catalog.Resolve(ctx, entity.DomainLoan, string(domainwf.StatePending))
	if err != nil {
		return nil, err
	}
	idleID, err := c.catalog.Resolve(ctx, entity.DomainResource, entity.ResourceIdle)
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

	expected := req.ExpectedReturnAt.UTC()
	record := &entity.LoanRecord{
		ResourceID:           req.ResourceID,
		RequesterID:          req.RequesterID,
		StatusID:             pendingID,
		SubmittedAt:          now,
		ExpectedReturnAt:     &expected,
		DestinationEquipment: req.DestinationEquipment,
		ProductionOrder:      req.ProductionOrder,
		EstimatedUsage:       req.EstimatedUsage,
	}
	if req.Remarks != "" {
		record.Remarks = &req.Remarks
	}

	err = c.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := c.repos.Resources.GetStatus(txCtx, req.ResourceID)
		if err != nil {
			return err
		}
		if current != idleID {
			return fmt.Errorf("%w: resource %d is %s, expected %s",
				domainwf.ErrStateConflict, req.ResourceID, c.statusName(entity.DomainResource, current), entity.ResourceIdle)
		}

		// idle -> idle takes the row lock so concurrent submits serialize here
		ok, err := c.repos.Resources.CompareAndSetStatus(txCtx, req.ResourceID, idleID, idleID, entity.ResourceUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: resource %d changed concurrently", domainwf.ErrStateConflict, req.ResourceID)
		}

		if err := c.ensureNoOpenWorkflow(txCtx, req.ResourceID, openLoans, openTasks); err != nil {
			return err
		}

		record.ID = 0
		if err := c.repos.Loans.Create(txCtx, record); err != nil {
			return err
		}

		return c.repos.History.Create(txCtx, &entity.TransitionRecord{
			WorkflowKind:       entity.WorkflowLoan,
			WorkflowID:         record.ID,
			ResourceID:         req.ResourceID,
			ActorID:            req.RequesterID,
			Trigger:            "submit",
			ToStatus:           string(domainwf.StatePending),
			ResourceFromStatus: entity.ResourceIdle,
			ResourceToStatus:   entity.ResourceIdle,
			Remarks:            req.Remarks,
			OccurredAt:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Loan submitted",
		"loan_id", record.ID,
		"resource_id", record.ResourceID,
		"requester_id", record.RequesterID,
	)
	c.publish(ctx, event.TypeLoanSubmitted, record.ID, record.ResourceID, map[string]interface{}{
		"requester_id":       record.RequesterID,
		"expected_return_at": expected.Format(time.RFC3339),
		"production_order":   record.ProductionOrder,
	})
	return record, nil
}

// ApproveLoan moves a pending loan to approved and claims the resource
func (c *coordinator) ApproveLoan(ctx context.Context, loanID, approverID int64, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("approver_id", approverID); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	return c.loanTransition(ctx, loanID, approverID, domainwf.TriggerApprove, domainwf.StatePending, opts, "",
		entity.LoanUpdate{ApproverID: &approverID, ApprovedAt: &now}, entity.ResourceUpdate{})
}

// RejectLoan closes a pending loan. reason is required and stored on the loan.
func (c *coordinator) RejectLoan(ctx context.Context, loanID, approverID int64, reason string, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("approver_id", approverID); err != nil {
		return nil, err
	}
	reason = utils.SanitizeString(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", domainwf.ErrValidation)
	}
	return c.loanTransition(ctx, loanID, approverID, domainwf.TriggerReject, domainwf.StatePending, opts, reason,
		entity.LoanUpdate{ApproverID: &approverID, Remarks: &reason}, entity.ResourceUpdate{})
}

// CheckOutLoan records the physical pickup of an approved loan
func (c *coordinator) CheckOutLoan(ctx context.Context, loanID, operatorID int64, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("operator_id", operatorID); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	return c.loanTransition(ctx, loanID, operatorID, domainwf.TriggerCheckOut, domainwf.StateApproved, opts, "",
		entity.LoanUpdate{CheckedOutAt: &now, CheckedOutBy: &operatorID}, entity.ResourceUpdate{})
}

// ReturnLoan closes a checked-out loan and releases the resource
func (c *coordinator) ReturnLoan(ctx context.Context, loanID, operatorID int64, details ReturnDetails, opts ...TransitionOption) (*TransitionResult, error) {
	if err := requirePositive("operator_id", operatorID); err != nil {
		return nil, err
	}
	details.Remarks = utils.SanitizeString(details.Remarks)
	if err := validate(details); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	return c.loanTransition(ctx, loanID, operatorID, domainwf.TriggerReturn, domainwf.StateCheckedOut, opts, details.Remarks,
		entity.LoanUpdate{ReturnedAt: &now, ReturnedBy: &operatorID},
		entity.ResourceUpdate{UsageDelta: details.UsageDelta, LocationID: details.LocationID})
}

func (c *coordinator) loanTransition(
	ctx context.Context,
	loanID, actorID int64,
	trigger domainwf.Trigger,
	from domainwf.State,
	opts []TransitionOption,
	remarks string,
	update entity.LoanUpdate,
	resourceUpdate entity.ResourceUpdate,
) (*TransitionResult, error) {
	if err := requirePositive("loan_id", loanID); err != nil {
		return nil, err
	}

	// The machine knows the single target for each loan trigger.
	to, err := loanTarget(from, trigger)
	if err != nil {
		return nil, err
	}

	t := &transition{
		kind:    entity.WorkflowLoan,
		id:      loanID,
		actorID: actorID,
		trigger: trigger,
		from:    from,
		targets: []domainwf.State{to},
		remarks: remarks,
		build:   BuildLoanStateMachine,
		resourceNames: []string{
			loanResourceStatus[from],
			loanResourceStatus[to],
		},
		load: func(ctx context.Context) (*workflowRow, error) {
			loan, err := c.repos.Loans.GetByID(ctx, loanID)
			if err != nil {
				return nil, err
			}
			if loan == nil {
				return nil, fmt.Errorf("%w: loan %d", domainwf.ErrNotFound, loanID)
			}
			return &workflowRow{resourceID: loan.ResourceID, statusID: loan.StatusID, actorID: loan.RequesterID}, nil
		},
		resourceMove: func(_ *workflowRow, to domainwf.State) (string, string) {
			return loanResourceStatus[from], loanResourceStatus[to]
		},
		apply: func(ctx context.Context, expectedID, nextID int64) (bool, error) {
			return c.repos.Loans.CompareAndSetStatus(ctx, loanID, expectedID, nextID, update)
		},
		resourceUpdate: resourceUpdate,
	}
	for _, opt := range opts {
		opt(&t.opts)
	}

	return c.run(ctx, t)
}

func loanTarget(from domainwf.State, trigger domainwf.Trigger) (domainwf.State, error) {
	m := BuildLoanStateMachine(from)
	if err := m.Fire(context.Background(), trigger); err != nil {
		return "", fmt.Errorf("%w: %v", domainwf.ErrStateConflict, err)
	}
	return m.State(), nil
}
