package file

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/ticketflow/pkg/models"
)

// DirectoryRepository stores workgroups and employees as one file each.
type DirectoryRepository struct {
	root string
	mu   sync.RWMutex
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(root string) *DirectoryRepository {
	return &DirectoryRepository{root: root}
}

func (dr *DirectoryRepository) dir(kind string) string {
	return filepath.Join(dr.root, "directory", kind)
}

// ListByWorkgroup returns the members of a workgroup ordered by employee id.
func (dr *DirectoryRepository) ListByWorkgroup(_ context.Context, workgroupID string) ([]*models.Employee, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	ids, err := listJSON(dr.dir("employees"))
	if err != nil {
		return nil, err
	}

	members := make([]*models.Employee, 0)

	for _, id := range ids {
		var employee models.Employee

		found, err := readJSON(filepath.Join(dr.dir("employees"), id+".json"), &employee)
		if err != nil {
			return nil, fmt.Errorf("failed to load employee %s: %w", id, err)
		}

		if found && slices.Contains(employee.WorkgroupIDs, workgroupID) {
			members = append(members, &employee)
		}
	}

	slices.SortFunc(members, func(a, b *models.Employee) int {
		return strings.Compare(a.ID, b.ID)
	})

	return members, nil
}

// GetWorkgroup returns the workgroup, or nil when it does not exist.
func (dr *DirectoryRepository) GetWorkgroup(_ context.Context, workgroupID string) (*models.Workgroup, error) {
	dr.mu.RLock()
	defer dr.mu.RUnlock()

	path, err := documentPath(dr.dir("workgroups"), workgroupID)
	if err != nil {
		return nil, nil
	}

	var workgroup models.Workgroup

	found, err := readJSON(path, &workgroup)
	if err != nil || !found {
		return nil, err
	}

	return &workgroup, nil
}

func (dr *DirectoryRepository) SaveWorkgroup(_ context.Context, workgroup *models.Workgroup) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	path, err := documentPath(dr.dir("workgroups"), workgroup.ID)
	if err != nil {
		return fmt.Errorf("failed to save workgroup: %w", err)
	}

	return writeJSON(path, workgroup)
}

func (dr *DirectoryRepository) SaveEmployee(_ context.Context, employee *models.Employee) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	path, err := documentPath(dr.dir("employees"), employee.ID)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}

	return writeJSON(path, employee)
}
