package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/lib/pq"
)

// DirectoryRepository handles workgroup and employee database operations.
type DirectoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *sql.DB, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{db: db, logger: logger}
}

func (r *DirectoryRepository) ListByWorkgroup(ctx context.Context, workgroupID string) ([]*models.Employee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			e.id
		  , e.name
		  , e.email
		  , e.active
		  , ARRAY(
				SELECT workgroup_id FROM employee_workgroups
				WHERE employee_id = e.id
				ORDER BY workgroup_id
			)
		FROM employees e
		JOIN employee_workgroups ew ON ew.employee_id = e.id
		WHERE ew.workgroup_id = $1
		ORDER BY e.id
	`, workgroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of workgroup %s: %w", workgroupID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	members := make([]*models.Employee, 0)

	for rows.Next() {
		var employee models.Employee

		err := rows.Scan(&employee.ID, &employee.Name, &employee.Email, &employee.Active, pq.Array(&employee.WorkgroupIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}

		members = append(members, &employee)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	return members, nil
}

func (r *DirectoryRepository) GetWorkgroup(ctx context.Context, workgroupID string) (*models.Workgroup, error) {
	var workgroup models.Workgroup

	err := r.db.QueryRowContext(ctx, "SELECT id, name FROM workgroups WHERE id = $1", workgroupID).
		Scan(&workgroup.ID, &workgroup.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workgroup %s: %w", workgroupID, err)
	}

	return &workgroup, nil
}

func (r *DirectoryRepository) SaveWorkgroup(ctx context.Context, workgroup *models.Workgroup) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workgroups (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, workgroup.ID, workgroup.Name)
	if err != nil {
		return fmt.Errorf("failed to save workgroup %s: %w", workgroup.ID, err)
	}

	return nil
}

// SaveEmployee upserts the employee and replaces its workgroup memberships.
func (r *DirectoryRepository) SaveEmployee(ctx context.Context, employee *models.Employee) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, active) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			active = EXCLUDED.active
	`, employee.ID, employee.Name, employee.Email, employee.Active)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", employee.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM employee_workgroups WHERE employee_id = $1", employee.ID)
	if err != nil {
		return fmt.Errorf("failed to clear memberships of employee %s: %w", employee.ID, err)
	}

	for _, workgroupID := range employee.WorkgroupIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO employee_workgroups (employee_id, workgroup_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, employee.ID, workgroupID)
		if err != nil {
			return fmt.Errorf("failed to add employee %s to workgroup %s: %w", employee.ID, workgroupID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit employee %s: %w", employee.ID, err)
	}

	return nil
}
