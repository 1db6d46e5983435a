package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
)

const ticketColumns = `
			id
		  , title
		  , workflow_id
		  , current_step_code
		  , workgroup_id
		  , responsible_employee_id
		  , created_at
		  , updated_at
`

// TicketRepository handles ticket-related database operations.
type TicketRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sql.DB, logger *slog.Logger) *TicketRepository {
	return &TicketRepository{db: db, logger: logger}
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+ticketColumns+"FROM tickets WHERE id = $1", id)

	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	return ticket, nil
}

func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (id, title, workflow_id, current_step_code, workgroup_id,
			responsible_employee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		ticket.ID,
		ticket.Title,
		ticket.WorkflowID,
		ticket.CurrentStepCode,
		ticket.WorkgroupID,
		ticket.ResponsibleEmployeeID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		if constraintViolated(err, "tickets_pkey") {
			return persistence.NewTicketError("Create", ticket.ID, persistence.ErrTicketAlreadyExists)
		}

		return fmt.Errorf("failed to create ticket %s: %w", ticket.ID, err)
	}

	return nil
}

// ApplyTransition locks the ticket row for update and the workflow row for share, re-checks
// both preconditions and writes the ticket and its history entry in one transaction.
func (r *TicketRepository) ApplyTransition(ctx context.Context, change *models.TransitionChange) (_ *models.Ticket, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		workflowID  string
		currentStep int
	)

	err = tx.QueryRowContext(ctx,
		"SELECT workflow_id, current_step_code FROM tickets WHERE id = $1 FOR UPDATE",
		change.TicketID,
	).Scan(&workflowID, &currentStep)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTicketNotFound)

			return nil, err
		}

		return nil, fmt.Errorf("failed to lock ticket %s: %w", change.TicketID, err)
	}

	if currentStep != change.ExpectedStepCode || workflowID != change.WorkflowID {
		err = persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTransitionConflict)

		return nil, err
	}

	var workflowVersion int

	err = tx.QueryRowContext(ctx,
		"SELECT version FROM workflows WHERE id = $1 FOR SHARE",
		change.WorkflowID,
	).Scan(&workflowVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock workflow %s: %w", change.WorkflowID, err)
	}

	if errors.Is(err, sql.ErrNoRows) || workflowVersion != change.WorkflowVersion {
		err = persistence.NewTicketError("ApplyTransition", change.TicketID, persistence.ErrTransitionConflict)

		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE tickets SET
			current_step_code = $2,
			workgroup_id = $3,
			responsible_employee_id = $4,
			updated_at = $5
		WHERE id = $1
		RETURNING`+ticketColumns,
		change.TicketID,
		change.ToStepCode,
		change.WorkgroupID,
		change.ResponsibleEmployeeID,
		time.Now().UTC(),
	)

	ticket, err := scanTicket(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket %s: %w", change.TicketID, err)
	}

	entry := change.History

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_history (id, ticket_id, field_name, old_value, new_value, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, change.TicketID, entry.FieldName, entry.OldValue, entry.NewValue, entry.ChangedBy, entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to record history for ticket %s: %w", change.TicketID, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	return ticket, nil
}

// History returns the ticket history in insertion order.
func (r *TicketRepository) History(ctx context.Context, ticketID string) ([]*models.HistoryEntry, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)", ticketID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check ticket %s: %w", ticketID, err)
	}

	if !exists {
		return nil, persistence.NewTicketError("History", ticketID, persistence.ErrTicketNotFound)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id
		  , ticket_id
		  , field_name
		  , old_value
		  , new_value
		  , changed_by
		  , changed_at
		FROM ticket_history
		WHERE ticket_id = $1
		ORDER BY seq
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of ticket %s: %w", ticketID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	history := make([]*models.HistoryEntry, 0)

	for rows.Next() {
		var entry models.HistoryEntry

		err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.FieldName,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ChangedBy,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		history = append(history, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

func scanTicket(scanner interface{ Scan(dest ...any) error }) (*models.Ticket, error) {
	var (
		ticket      models.Ticket
		workgroupID sql.NullString
		responsible sql.NullString
	)

	err := scanner.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.WorkflowID,
		&ticket.CurrentStepCode,
		&workgroupID,
		&responsible,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if workgroupID.Valid {
		ticket.WorkgroupID = &workgroupID.String
	}

	if responsible.Valid {
		ticket.ResponsibleEmployeeID = &responsible.String
	}

	return &ticket, nil
}
