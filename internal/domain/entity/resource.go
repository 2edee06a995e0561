package entity

import "time"

// Resource is a physical tool or die tracked through loans and maintenance
type Resource struct {
	ID                  int64     `json:"id" db:"resource_id"`
	Code                string    `json:"code" db:"code"`
	Name                string    `json:"name" db:"name"`
	StatusID            int64     `json:"status_id" db:"current_status_id"`
	LocationID          *int64    `json:"location_id,omitempty" db:"current_location_id"`
	CumulativeUsage     int64     `json:"cumulative_usage" db:"cumulative_usage"`
	LifetimeLimit       int64     `json:"lifetime_limit" db:"lifetime_limit"`
	MaintenanceInterval int64     `json:"maintenance_interval" db:"maintenance_interval"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// ResourceUpdate carries the side fields written together with a status
// compare-and-set.
type ResourceUpdate struct {
	LocationID *int64
	UsageDelta int64
}
