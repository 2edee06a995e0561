package entity

import "time"

// TransitionRecord is the audit trail entry written with every workflow transition
type TransitionRecord struct {
	ID                 int64        `json:"id" db:"history_id"`
	WorkflowKind       WorkflowKind `json:"workflow_kind" db:"workflow_kind"`
	WorkflowID         int64        `json:"workflow_id" db:"workflow_id"`
	ResourceID         int64        `json:"resource_id" db:"resource_id"`
	ActorID            int64        `json:"actor_id" db:"actor_id"`
	Trigger            string       `json:"trigger" db:"trigger_name"`
	FromStatus         string       `json:"from_status" db:"from_status"`
	ToStatus           string       `json:"to_status" db:"to_status"`
	ResourceFromStatus string       `json:"resource_from_status" db:"resource_from_status"`
	ResourceToStatus   string       `json:"resource_to_status" db:"resource_to_status"`
	Remarks            string       `json:"remarks,omitempty" db:"remarks"`
	OccurredAt         time.Time    `json:"occurred_at" db:"occurred_at"`
}
