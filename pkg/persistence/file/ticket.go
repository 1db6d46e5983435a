package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
)

// ticketDocument keeps a ticket and its history in one file so both are replaced together.
type ticketDocument struct {
	Ticket  *models.Ticket         `json:"ticket"`
	History []*models.HistoryEntry `json:"history"`
}

// TicketRepository handles ticket-related file operations.
type TicketRepository struct {
	root  string
	locks *keyedLocks
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(root string, locks *keyedLocks) *TicketRepository {
	return &TicketRepository{root: root, locks: locks}
}

func (tr *TicketRepository) path(id string) (string, error) {
	return documentPath(filepath.Join(tr.root, "tickets"), id)
}

func (tr *TicketRepository) read(id string) (*ticketDocument, error) {
	path, err := tr.path(id)
	if err != nil {
		// No document can be stored under an invalid id.
		return nil, nil
	}

	var document ticketDocument

	found, err := readJSON(path, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", id, err)
	}

	if !found {
		return nil, nil
	}

	return &document, nil
}

// GetByID retrieves a ticket by its ID.
func (tr *TicketRepository) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	lock := tr.locks.get(ticketLockKey(id))
	lock.RLock()
	defer lock.RUnlock()

	document, err := tr.read(id)
	if err != nil || document == nil {
		return nil, err
	}

	return document.Ticket, nil
}

// Create stores a new ticket without history.
func (tr *TicketRepository) Create(_ context.Context, ticket *models.Ticket) error {
	lock := tr.locks.get(ticketLockKey(ticket.ID))
	lock.Lock()
	defer lock.Unlock()

	path, err := tr.path(ticket.ID)
	if err != nil {
		return persistence.NewTicketError("Create", ticket.ID, err)
	}

	existing, err := tr.read(ticket.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		return persistence.NewTicketError("Create", ticket.ID, persistence.ErrTicketAlreadyExists)
	}

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	return writeJSON(path, &ticketDocument{
		Ticket:  ticket,
		History: []*models.HistoryEntry{},
	})
}

// ApplyTransition re-checks the preconditions and writes ticket and history in one rename.
// The workflow read lock keeps a concurrent definition save from slipping in between the
// version check and the write.
func (tr *TicketRepository) ApplyTransition(_ context.Context, change *models.TransitionChange) (*models.Ticket, error) {
	ticketLock := tr.locks.get(ticketLockKey(change.TicketID))
	ticketLock.Lock()
	defer ticketLock.Unlock()

	workflowLock := tr.locks.get(workflowLockKey(change.WorkflowID))
	workflowLock.RLock()
	defer workflowLock.RUnlock()

	document, err := tr.read(change.TicketID)
	if err != nil {
		return nil, err
	}

	if document == nil {
		return nil, persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTicketNotFound)
	}

	ticket := document.Ticket
	if ticket.CurrentStepCode != change.ExpectedStepCode || ticket.WorkflowID != change.WorkflowID {
		return nil, persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTransitionConflict)
	}

	workflowPath, err := documentPath(filepath.Join(tr.root, "workflows"), change.WorkflowID)
	if err != nil {
		return nil, persistence.NewTicketError("ApplyTransition", change.TicketID, err)
	}

	var workflow models.Workflow

	found, err := readJSON(workflowPath, &workflow)
	if err != nil {
		return nil, err
	}

	if !found || workflow.Version != change.WorkflowVersion {
		return nil, persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTransitionConflict)
	}

	updated := *ticket
	updated.CurrentStepCode = change.ToStepCode
	updated.WorkgroupID = change.WorkgroupID
	updated.ResponsibleEmployeeID = change.ResponsibleEmployeeID
	updated.UpdatedAt = time.Now().UTC()

	ticketPath, err := tr.path(change.TicketID)
	if err != nil {
		return nil, persistence.NewTicketError("ApplyTransition", change.TicketID, err)
	}

	err = writeJSON(ticketPath, &ticketDocument{
		Ticket:  &updated,
		History: append(document.History, change.History),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply transition to ticket %s: %w", change.TicketID, err)
	}

	return &updated, nil
}

// History returns the ticket history in the order it was written.
func (tr *TicketRepository) History(_ context.Context, ticketID string) ([]*models.HistoryEntry, error) {
	lock := tr.locks.get(ticketLockKey(ticketID))
	lock.RLock()
	defer lock.RUnlock()

	document, err := tr.read(ticketID)
	if err != nil {
		return nil, err
	}

	if document == nil {
		return nil, persistence.NewTicketError("History", ticketID, persistence.ErrTicketNotFound)
	}

	return document.History, nil
}
