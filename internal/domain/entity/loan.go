package entity

import "time"

// LoanRecord is a custody request for one resource
type LoanRecord struct {
	ID                   int64      `json:"id" db:"loan_id"`
	ResourceID           int64      `json:"resource_id" db:"resource_id"`
	RequesterID          int64      `json:"requester_id" db:"requester_id"`
	ApproverID           *int64     `json:"approver_id,omitempty" db:"approver_id"`
	StatusID             int64      `json:"status_id" db:"status_id"`
	SubmittedAt          time.Time  `json:"submitted_at" db:"submitted_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	CheckedOutAt         *time.Time `json:"checked_out_at,omitempty" db:"checked_out_at"`
	CheckedOutBy         *int64     `json:"checked_out_by,omitempty" db:"checked_out_by"`
	ReturnedAt           *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	ReturnedBy           *int64     `json:"returned_by,omitempty" db:"returned_by"`
	ExpectedReturnAt     *time.Time `json:"expected_return_at,omitempty" db:"expected_return_at"`
	DestinationEquipment string     `json:"destination_equipment,omitempty" db:"destination_equipment"`
	ProductionOrder      string     `json:"production_order,omitempty" db:"production_order"`
	EstimatedUsage       int64      `json:"estimated_usage,omitempty" db:"estimated_usage"`
	Remarks              *string    `json:"remarks,omitempty" db:"remarks"`
	OverdueNotifiedAt    *time.Time `json:"overdue_notified_at,omitempty" db:"overdue_notified_at"`
}

// LoanUpdate holds the side fields written by a loan transition. Nil fields are left untouched.
type LoanUpdate struct {
	ApproverID   *int64
	ApprovedAt   *time.Time
	CheckedOutAt *time.Time
	CheckedOutBy *int64
	ReturnedAt   *time.Time
	ReturnedBy   *int64
	Remarks      *string
}
