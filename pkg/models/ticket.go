package models

import "time"

// HistoryFieldStatus is the field name recorded for step changes.
const HistoryFieldStatus = "status"

// Ticket holds the fields the transition engine reads and writes.
type Ticket struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	WorkflowID            string    `json:"workflow_id"`
	CurrentStepCode       int       `json:"current_step_code"`
	WorkgroupID           *string   `json:"workgroup_id"`
	ResponsibleEmployeeID *string   `json:"responsible_employee_id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// HistoryEntry is an append-only audit record of a ticket field change.
type HistoryEntry struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	FieldName string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// TransitionChange is everything a successful transition commits in one unit of work.
// ExpectedStepCode and WorkflowVersion are the preconditions the store re-checks.
type TransitionChange struct {
	TicketID              string
	ExpectedStepCode      int
	WorkflowID            string
	WorkflowVersion       int
	ToStepCode            int
	WorkgroupID           *string
	ResponsibleEmployeeID *string
	History               *HistoryEntry
}
