// Package events defines event types and structures for ticket and workflow lifecycle
// notifications.
package events

import (
	"time"

	"github.com/dukex/ticketflow/pkg/models"
)

type EventType string

// Topic is the single topic every ticketflow event is published to.
const Topic = "ticketflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TicketOpenedEvent       EventType = "ticket.opened"
	TicketTransitionedEvent EventType = "ticket.transitioned"
	WorkflowSavedEvent      EventType = "workflow.saved"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps an event of the given type with the current time.
func NewBaseEvent(id string, eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// TicketTransitioned is published after a transition has been committed.
type TicketTransitioned struct {
	BaseEvent

	TicketID              string  `json:"ticket_id"`
	WorkflowID            string  `json:"workflow_id"`
	WorkflowVersion       int     `json:"workflow_version"`
	FromStepCode          int     `json:"from_step_code"`
	ToStepCode            int     `json:"to_step_code"`
	FromStepName          string  `json:"from_step_name"`
	ToStepName            string  `json:"to_step_name"`
	WorkgroupID           *string `json:"workgroup_id,omitempty"`
	ResponsibleEmployeeID *string `json:"responsible_employee_id,omitempty"`
	Actor                 string  `json:"actor"`
}

func (e TicketTransitioned) GetType() EventType {
	return TicketTransitionedEvent
}

// TicketOpened is published after a ticket has been placed on its first step.
type TicketOpened struct {
	BaseEvent

	Ticket *models.Ticket `json:"ticket"`
}

func (e TicketOpened) GetType() EventType {
	return TicketOpenedEvent
}

// WorkflowSaved is published after a workflow definition has been stored.
type WorkflowSaved struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	StepCount  int    `json:"step_count"`
	Created    bool   `json:"created"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}
