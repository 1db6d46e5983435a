// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNameTaken indicates another workflow already uses the name.
	ErrWorkflowNameTaken = errors.New("workflow name already in use")

	// ErrWorkflowVersionConflict indicates the workflow changed since the caller read it.
	ErrWorkflowVersionConflict = errors.New("workflow was modified concurrently")

	// ErrTicketNotFound indicates a ticket was not found by the given identifier.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrTicketAlreadyExists indicates a ticket with the same identifier already exists.
	ErrTicketAlreadyExists = errors.New("ticket already exists")

	// ErrTransitionConflict indicates the ticket step or its workflow changed between load and commit.
	ErrTransitionConflict = errors.New("ticket was modified concurrently")

	// ErrWorkgroupNotFound indicates a workgroup was not found by the given identifier.
	ErrWorkgroupNotFound = errors.New("workgroup not found")

	// ErrInvalidID indicates an identifier the store cannot use as a key.
	ErrInvalidID = errors.New("invalid identifier")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// TicketError wraps ticket-related errors with additional context.
type TicketError struct {
	Op       string // Operation being performed
	TicketID string // Ticket ID
	Err      error  // Underlying error
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("%s operation failed for ticket %s: %v", e.Op, e.TicketID, e.Err)
}

func (e *TicketError) Unwrap() error {
	return e.Err
}

func (e *TicketError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTicketError creates a new ticket error with context.
func NewTicketError(op, ticketID string, err error) *TicketError {
	return &TicketError{
		Op:       op,
		TicketID: ticketID,
		Err:      err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTicketNotFound checks if an error indicates a ticket was not found.
func IsTicketNotFound(err error) bool {
	return errors.Is(err, ErrTicketNotFound)
}

// IsInvalidID checks if an error indicates an identifier the store cannot use.
func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

// IsConflict checks if an error indicates a lost-update race that may succeed when retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTransitionConflict) || errors.Is(err, ErrWorkflowVersionConflict)
}
