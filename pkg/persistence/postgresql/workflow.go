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
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const selectWorkflowColumns = `
		SELECT
			id
		  , name
		  , active
		  , version
		  , last_step_code
		  , created_at
		  , updated_at
		FROM workflows
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows ordered by name.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, selectWorkflowColumns+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getOne(ctx, selectWorkflowColumns+" WHERE id = $1", id)
}

func (r *WorkflowRepository) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	return r.getOne(ctx, selectWorkflowColumns+" WHERE name = $1", name)
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, arg string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, query, arg)

	workflow, err := r.scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save stores the workflow and replaces its steps in one transaction. The workflow row is
// locked for the duration so concurrent transitions observe either the old or the new
// definition.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var storedVersion int

	err = tx.QueryRowContext(ctx, "SELECT version FROM workflows WHERE id = $1 FOR UPDATE", workflow.ID).Scan(&storedVersion)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		storedVersion = 0
	case err != nil:
		return fmt.Errorf("failed to lock workflow %s: %w", workflow.ID, err)
	}

	if storedVersion != workflow.Version {
		err = persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowVersionConflict)

		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	nextVersion := workflow.Version + 1

	if storedVersion == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflows (id, name, active, version, last_step_code, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, workflow.ID, workflow.Name, workflow.Active, nextVersion, workflow.LastStepCode, workflow.CreatedAt, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE workflows SET
				name = $2,
				active = $3,
				version = $4,
				last_step_code = $5,
				updated_at = $6
			WHERE id = $1
		`, workflow.ID, workflow.Name, workflow.Active, nextVersion, workflow.LastStepCode, now)
	}

	if err != nil {
		switch {
		case constraintViolated(err, "workflows_name_key"):
			err = persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNameTaken)
		case constraintViolated(err, "workflows_pkey"):
			err = persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowVersionConflict)
		default:
			err = fmt.Errorf("failed to save workflow base: %w", err)
		}

		return err
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	for _, step := range workflow.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, step_code, step_name, step_order, category_code,
				workgroup_id, allowed_next_steps, allowed_previous_steps)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			workflow.ID,
			step.StepCode,
			step.StepName,
			step.Order,
			int(step.CategoryCode),
			step.WorkgroupID,
			pq.Array(step.AllowedNextSteps),
			pq.Array(step.AllowedPreviousSteps),
		)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.StepName, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	workflow.Version = nextVersion
	workflow.UpdatedAt = now

	r.logger.DebugContext(ctx, "workflow saved", "workflow_id", workflow.ID, "version", workflow.Version)

	return nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			step_code
		  , step_name
		  , step_order
		  , category_code
		  , workgroup_id
		  , allowed_next_steps
		  , allowed_previous_steps
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of workflow %s: %w", workflowID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step        models.WorkflowStep
			category    int
			workgroupID sql.NullString
		)

		err := rows.Scan(
			&step.StepCode,
			&step.StepName,
			&step.Order,
			&category,
			&workgroupID,
			pq.Array(&step.AllowedNextSteps),
			pq.Array(&step.AllowedPreviousSteps),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		step.CategoryCode = models.CategoryCode(category)

		if workgroupID.Valid {
			step.WorkgroupID = &workgroupID.String
		}

		if len(step.AllowedNextSteps) == 0 {
			step.AllowedNextSteps = nil
		}

		if len(step.AllowedPreviousSteps) == 0 {
			step.AllowedPreviousSteps = nil
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func (r *WorkflowRepository) scanWorkflowBase(scanner interface{ Scan(dest ...any) error }) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Active,
		&workflow.Version,
		&workflow.LastStepCode,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
