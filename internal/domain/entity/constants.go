package entity

// Resource status names (resource status catalog)
const (
	ResourceIdle            = "idle"
	ResourceInUse           = "in_use"
	ResourceCheckedOut      = "checked_out"
	ResourceUnderRepair     = "under_repair"
	ResourceUnderService    = "under_service"
	ResourceAwaitingRepair  = "awaiting_repair"
	ResourceAwaitingService = "awaiting_service"
	ResourceScrapped        = "scrapped"
)

// ResourceStatuses lists the resource status vocabulary
func ResourceStatuses() []string {
	return []string{
		ResourceIdle,
		ResourceInUse,
		ResourceCheckedOut,
		ResourceUnderRepair,
		ResourceUnderService,
		ResourceAwaitingRepair,
		ResourceAwaitingService,
		ResourceScrapped,
	}
}

// MaintenanceKind separates repairs (fault driven) from scheduled service
type MaintenanceKind string

const (
	MaintenanceRepair  MaintenanceKind = "repair"
	MaintenanceService MaintenanceKind = "service"
)

// IsValid reports whether k is a known maintenance kind
func (k MaintenanceKind) IsValid() bool {
	return k == MaintenanceRepair || k == MaintenanceService
}

// ActiveResourceStatus is the resource status held while a task of this kind is open
func (k MaintenanceKind) ActiveResourceStatus() string {
	if k == MaintenanceRepair {
		return ResourceUnderRepair
	}
	return ResourceUnderService
}

// WorkflowKind identifies the workflow table a history row belongs to
type WorkflowKind string

const (
	WorkflowLoan        WorkflowKind = "loan"
	WorkflowMaintenance WorkflowKind = "maintenance"
)
