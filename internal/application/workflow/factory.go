package workflow

import (
	"github.com/garyjia/toolcrib/internal/domain/entity"
	domainwf "github.com/garyjia/toolcrib/internal/domain/workflow"
)

var (
	loanBuilder        = newLoanBuilder()
	maintenanceBuilder = newMaintenanceBuilder()
)

func newLoanBuilder() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerCheckOut, domainwf.StateCheckedOut)

	builder.Configure(domainwf.StateCheckedOut).
		Permit(domainwf.TriggerReturn, domainwf.StateReturned)

	// RETURNED and REJECTED are terminal

	return builder
}

func newMaintenanceBuilder() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateCreated).
		Permit(domainwf.TriggerStart, domainwf.StateInProgress)

	// The requested outcome selects the terminal state
	in := builder.Configure(domainwf.StateInProgress)
	for _, outcome := range outcomes {
		in.PermitIf(domainwf.TriggerComplete, outcome, domainwf.OutcomeIs(outcome))
	}

	return builder
}

var outcomes = []domainwf.State{
	domainwf.StateFitForUse,
	domainwf.StatePendingInspection,
	domainwf.StateFailedInspection,
	domainwf.StateAwaitingParts,
	domainwf.StateOutsourced,
	domainwf.StateScrapped,
}

// BuildLoanStateMachine creates a loan machine positioned at state
func BuildLoanStateMachine(state domainwf.State) domainwf.StateMachine {
	return loanBuilder.Build(state)
}

// BuildMaintenanceStateMachine creates a maintenance machine positioned at state
func BuildMaintenanceStateMachine(state domainwf.State) domainwf.StateMachine {
	return maintenanceBuilder.Build(state)
}

// loanResourceStatus is the resource status that co-occurs with each loan state
var loanResourceStatus = map[domainwf.State]string{
	domainwf.StatePending:    entity.ResourceIdle,
	domainwf.StateApproved:   entity.ResourceCheckedOut,
	domainwf.StateCheckedOut: entity.ResourceCheckedOut,
	domainwf.StateReturned:   entity.ResourceIdle,
	domainwf.StateRejected:   entity.ResourceIdle,
}

// outcomeResourceStatus is where a completed task leaves its resource
var outcomeResourceStatus = map[domainwf.State]string{
	domainwf.StateFitForUse:         entity.ResourceIdle,
	domainwf.StatePendingInspection: entity.ResourceAwaitingService,
	domainwf.StateFailedInspection:  entity.ResourceAwaitingRepair,
	domainwf.StateAwaitingParts:     entity.ResourceAwaitingRepair,
	domainwf.StateOutsourced:        entity.ResourceAwaitingRepair,
	domainwf.StateScrapped:          entity.ResourceScrapped,
}

// maintainableStatuses are the resource statuses a task may be opened from
var maintainableStatuses = []string{
	entity.ResourceIdle,
	entity.ResourceAwaitingRepair,
	entity.ResourceAwaitingService,
}

// maintenanceResourceStatus is the resource status co-occurring with an
// open task of kind, or with its outcome once closed
func maintenanceResourceStatus(kind entity.MaintenanceKind, state domainwf.State) string {
	if state.IsOutcome() {
		return outcomeResourceStatus[state]
	}
	return kind.ActiveResourceStatus()
}
