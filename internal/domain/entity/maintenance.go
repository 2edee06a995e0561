package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaintenanceRecord is a repair or service task on one resource
type MaintenanceRecord struct {
	ID                 int64           `json:"id" db:"task_id"`
	ResourceID         int64           `json:"resource_id" db:"resource_id"`
	Kind               MaintenanceKind `json:"kind" db:"kind"`
	TechnicianID       int64           `json:"technician_id" db:"technician_id"`
	StatusID           int64           `json:"status_id" db:"outcome_status_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	StartedAt          *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	ProblemDescription string          `json:"problem_description,omitempty" db:"problem_description"`
	ActionsTaken       *string         `json:"actions_taken,omitempty" db:"actions_taken"`
	Cost               *float64        `json:"cost,omitempty" db:"cost"`
	ReplacedParts      ReplacedParts   `json:"replaced_parts,omitempty" db:"replaced_parts"`
	Notes              *string         `json:"notes,omitempty" db:"notes"`
}

// ReplacedPart is one sub-part swapped during maintenance
type ReplacedPart struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// ReplacedParts is stored as a JSON document
type ReplacedParts []ReplacedPart

// Value implements driver.Valuer
func (p ReplacedParts) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (p *ReplacedParts) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("replaced parts: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	return json.Unmarshal(raw, p)
}

// MaintenanceUpdate holds the side fields written by a maintenance transition
type MaintenanceUpdate struct {
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ActionsTaken  *string
	Cost          *float64
	ReplacedParts ReplacedParts
	Notes         *string
}
