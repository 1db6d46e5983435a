// Package persistence provides data storage abstraction layer for workflows, tickets and the
// employee directory.
package persistence

import (
	"context"

	"github.com/dukex/ticketflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TicketRepository() TicketRepository
	DirectoryRepository() DirectoryRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. GetByID and GetByName return nil, nil when
// nothing matches.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetByName(ctx context.Context, name string) (*models.Workflow, error)

	// Save stores the workflow with all of its steps atomically. workflow.Version is the
	// version the caller read (0 for a new workflow); when the stored version differs the save
	// fails with ErrWorkflowVersionConflict. On success workflow.Version is incremented.
	Save(ctx context.Context, workflow *models.Workflow) error
}

// TicketRepository stores tickets and their history. GetByID returns nil, nil when the ticket
// does not exist.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	Create(ctx context.Context, ticket *models.Ticket) error

	// ApplyTransition commits a transition in one unit of work: it re-checks that the ticket is
	// still on change.ExpectedStepCode and that the workflow is still at change.WorkflowVersion,
	// updates the ticket and appends change.History. When a precondition no longer holds it
	// returns ErrTransitionConflict and nothing is written.
	ApplyTransition(ctx context.Context, change *models.TransitionChange) (*models.Ticket, error)

	History(ctx context.Context, ticketID string) ([]*models.HistoryEntry, error)
}

// DirectoryRepository is the employee and workgroup directory. ListByWorkgroup returns members
// ordered by employee id.
type DirectoryRepository interface {
	ListByWorkgroup(ctx context.Context, workgroupID string) ([]*models.Employee, error)
	GetWorkgroup(ctx context.Context, workgroupID string) (*models.Workgroup, error)
	SaveWorkgroup(ctx context.Context, workgroup *models.Workgroup) error
	SaveEmployee(ctx context.Context, employee *models.Employee) error
}
