// Package assignment decides which workgroup owns a ticket on a given step and which employee
// of that workgroup is proposed as responsible.
package assignment

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dukex/ticketflow/pkg/models"
)

// Directory is the slice of the employee directory the resolver reads.
type Directory interface {
	ListByWorkgroup(ctx context.Context, workgroupID string) ([]*models.Employee, error)
	GetWorkgroup(ctx context.Context, workgroupID string) (*models.Workgroup, error)
}

// Assignment is the ownership a ticket takes when it enters a step. Both fields are nil for
// steps without a workgroup; ResponsibleEmployeeID is nil when no member is eligible.
type Assignment struct {
	WorkgroupID           *string
	ResponsibleEmployeeID *string
}

type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve computes the assignment for step from the current directory. The result never
// depends on the ticket's previous responsible employee.
func (r *Resolver) Resolve(ctx context.Context, step *models.WorkflowStep) (Assignment, error) {
	if step == nil || step.WorkgroupID == nil {
		return Assignment{}, nil
	}

	workgroupID := *step.WorkgroupID

	members, err := r.directory.ListByWorkgroup(ctx, workgroupID)
	if err != nil {
		return Assignment{}, fmt.Errorf("failed to list members of workgroup %s: %w", workgroupID, err)
	}

	eligible := make([]*models.Employee, 0, len(members))

	for _, member := range members {
		if member != nil && member.Active {
			eligible = append(eligible, member)
		}
	}

	// Ordered by id so every backend picks the same member.
	slices.SortStableFunc(eligible, func(a, b *models.Employee) int {
		return cmp.Compare(a.ID, b.ID)
	})

	assignment := Assignment{WorkgroupID: &workgroupID}

	if len(eligible) > 0 {
		id := eligible[0].ID
		assignment.ResponsibleEmployeeID = &id
	}

	return assignment, nil
}

// WorkgroupName returns the display name of the workgroup, or "" when it is unknown.
func (r *Resolver) WorkgroupName(ctx context.Context, workgroupID *string) (string, error) {
	if workgroupID == nil {
		return "", nil
	}

	workgroup, err := r.directory.GetWorkgroup(ctx, *workgroupID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch workgroup %s: %w", *workgroupID, err)
	}

	if workgroup == nil {
		return "", nil
	}

	return workgroup.Name, nil
}
