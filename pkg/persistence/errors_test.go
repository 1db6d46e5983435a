package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		ticketErr := persistence.NewTicketError("ApplyTransition", "ticket-456", persistence.ErrTransitionConflict)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.False(t, persistence.IsTicketNotFound(workflowErr))
		assert.True(t, persistence.IsConflict(ticketErr))
		assert.True(t, errors.Is(ticketErr, persistence.ErrTransitionConflict))
	})

	t.Run("conflicts survive wrapping", func(t *testing.T) {
		err := fmt.Errorf("save failed: %w", persistence.NewWorkflowError("Save", "w", persistence.ErrWorkflowVersionConflict))

		assert.True(t, persistence.IsConflict(err))
	})

	t.Run("errors contain context", func(t *testing.T) {
		err := persistence.NewTicketError("ApplyTransition", "ticket-456", persistence.ErrTicketNotFound)

		assert.Contains(t, err.Error(), "ApplyTransition")
		assert.Contains(t, err.Error(), "ticket-456")
		assert.Contains(t, err.Error(), "ticket not found")
	})
}
