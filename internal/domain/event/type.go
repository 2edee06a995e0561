package event

// Type identifies the type of domain event
type Type string

const (
	TypeLoanSubmitted        Type = "loan.submitted"
	TypeLoanOverdue          Type = "loan.overdue"
	TypeMaintenanceCreated   Type = "maintenance.created"
	TypeWorkflowTransitioned Type = "workflow.transitioned"
	TypeCatalogRefreshed     Type = "catalog.refreshed"
)

// Types lists every event type in a stable order
func Types() []Type {
	return []Type{
		TypeLoanSubmitted,
		TypeLoanOverdue,
		TypeMaintenanceCreated,
		TypeWorkflowTransitioned,
		TypeCatalogRefreshed,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLoanSubmitted,
		TypeLoanOverdue,
		TypeMaintenanceCreated,
		TypeWorkflowTransitioned,
		TypeCatalogRefreshed:
		return true
	default:
		return false
	}
}
