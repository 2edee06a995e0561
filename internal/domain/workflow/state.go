package workflow

// State is a workflow status name. Loan and maintenance workflows share the
// type; their vocabularies do not overlap.
type State string

// Loan workflow states
const (
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateCheckedOut State = "checked_out"
	StateReturned   State = "returned"
	StateRejected   State = "rejected"
)

// Maintenance workflow states. Everything after StateInProgress is a terminal
// outcome recorded when the task is completed.
const (
	StateCreated           State = "created"
	StateInProgress        State = "in_progress"
	StateFitForUse         State = "fit_for_use"
	StatePendingInspection State = "pending_inspection"
	StateFailedInspection  State = "failed_inspection"
	StateAwaitingParts     State = "awaiting_parts"
	StateOutsourced        State = "outsourced"
	StateScrapped          State = "scrapped"
)

var loanStates = []State{
	StatePending,
	StateApproved,
	StateCheckedOut,
	StateReturned,
	StateRejected,
}

var maintenanceStates = []State{
	StateCreated,
	StateInProgress,
	StateFitForUse,
	StatePendingInspection,
	StateFailedInspection,
	StateAwaitingParts,
	StateOutsourced,
	StateScrapped,
}

var validStates = func() map[State]bool {
	m := make(map[State]bool, len(loanStates)+len(maintenanceStates))
	for _, s := range loanStates {
		m[s] = true
	}
	for _, s := range maintenanceStates {
		m[s] = true
	}
	return m
}()

var terminalStates = map[State]bool{
	StateReturned:          true,
	StateRejected:          true,
	StateFitForUse:         true,
	StatePendingInspection: true,
	StateFailedInspection:  true,
	StateAwaitingParts:     true,
	StateOutsourced:        true,
	StateScrapped:          true,
}

var outcomeStates = map[State]bool{
	StateFitForUse:         true,
	StatePendingInspection: true,
	StateFailedInspection:  true,
	StateAwaitingParts:     true,
	StateOutsourced:        true,
	StateScrapped:          true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsOutcome reports whether s is a maintenance completion outcome
func (s State) IsOutcome() bool {
	return outcomeStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// LoanStates returns the loan workflow vocabulary in lifecycle order.
func LoanStates() []State {
	return append([]State(nil), loanStates...)
}

// MaintenanceStates returns the maintenance workflow vocabulary in lifecycle order.
func MaintenanceStates() []State {
	return append([]State(nil), maintenanceStates...)
}

// OpenLoanStates are the loan states that hold a claim on the resource.
func OpenLoanStates() []State {
	return openStates(loanStates)
}

// OpenMaintenanceStates are the maintenance states that hold a claim on the resource.
func OpenMaintenanceStates() []State {
	return openStates(maintenanceStates)
}

func openStates(all []State) []State {
	open := make([]State, 0, len(all))
	for _, s := range all {
		if !s.IsTerminal() {
			open = append(open, s)
		}
	}
	return open
}
