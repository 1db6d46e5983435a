package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root  string
	locks *keyedLocks

	// saves are serialized so name uniqueness can be checked against every stored workflow.
	saveMu sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string, locks *keyedLocks) *WorkflowRepository {
	return &WorkflowRepository{root: root, locks: locks}
}

func (wr *WorkflowRepository) path(id string) (string, error) {
	return documentPath(filepath.Join(wr.root, "workflows"), id)
}

// GetAll returns all workflows ordered by name.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listJSON(filepath.Join(wr.root, "workflows"))
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Name < workflows[j].Name
	})

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	lock := wr.locks.get(workflowLockKey(workflowID))
	lock.RLock()
	defer lock.RUnlock()

	return wr.read(workflowID)
}

func (wr *WorkflowRepository) read(workflowID string) (*models.Workflow, error) {
	path, err := wr.path(workflowID)
	if err != nil {
		// No document can be stored under an invalid id.
		return nil, nil
	}

	var workflow models.Workflow

	found, err := readJSON(path, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if !found {
		return nil, nil
	}

	return &workflow, nil
}

// GetByName returns the workflow with the given name.
func (wr *WorkflowRepository) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	workflows, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.Name == name {
			return workflow, nil
		}
	}

	return nil, nil
}

// Save writes the workflow definition file after checking the expected version.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	wr.saveMu.Lock()
	defer wr.saveMu.Unlock()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	path, err := wr.path(workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	other, err := wr.GetByName(ctx, workflow.Name)
	if err != nil {
		return err
	}

	if other != nil && other.ID != workflow.ID {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNameTaken)
	}

	lock := wr.locks.get(workflowLockKey(workflow.ID))
	lock.Lock()
	defer lock.Unlock()

	stored, err := wr.read(workflow.ID)
	if err != nil {
		return err
	}

	storedVersion := 0
	if stored != nil {
		storedVersion = stored.Version
	}

	if storedVersion != workflow.Version {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowVersionConflict)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version++

	err = writeJSON(path, workflow)
	if err != nil {
		workflow.Version--

		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}
