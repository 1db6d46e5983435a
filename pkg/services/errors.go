// Package services provides the workflow definition store and the transition executor.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/transition"
	"github.com/dukex/ticketflow/pkg/workflow"
)

var (
	// ErrInvalidRequest indicates malformed input (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrWorkflowInactive indicates a ticket cannot be opened on an inactive workflow.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrStepNotFound indicates the requested step code does not exist in the ticket's workflow.
	ErrStepNotFound = errors.New("step not found in workflow")
)

// DeniedError is returned when the workflow does not permit a transition. It is a domain
// decision and is never retried.
type DeniedError struct {
	TicketID string
	Reason   string
	Rule     transition.Rule
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("transition of ticket %s denied: %s", e.TicketID, e.Reason)
}

// IsDenied checks if an error is a transition refusal.
func IsDenied(err error) bool {
	var deniedErr *DeniedError

	return errors.As(err, &deniedErr)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowInactive) ||
		persistence.IsInvalidID(err) ||
		workflow.IsValidationError(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrStepNotFound) ||
		persistence.IsTicketNotFound(err) ||
		persistence.IsWorkflowNotFound(err)
}

// IsConflictError checks if an error is a concurrent modification that should return HTTP 409.
func IsConflictError(err error) bool {
	return persistence.IsConflict(err)
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
