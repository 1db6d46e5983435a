// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/ticketflow/pkg/models"
	"github.com/google/uuid"
)

// Step codes of the workflow returned by SupportWorkflow.
const (
	OpenCode       = 1
	InProgressCode = 2
	ResolvedCode   = 3
	CancelledCode  = 4
)

// CreateTestStep creates a WorkflowStep with default values that can be overridden.
func CreateTestStep(code int, name string, order int, category models.CategoryCode, overrides ...func(*models.WorkflowStep)) *models.WorkflowStep {
	step := &models.WorkflowStep{
		StepCode:     code,
		StepName:     name,
		Order:        order,
		CategoryCode: category,
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithWorkgroup sets the owning workgroup of the step.
func WithWorkgroup(workgroupID string) func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.WorkgroupID = &workgroupID
	}
}

// WithNext sets the explicit next steps.
func WithNext(names ...string) func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.AllowedNextSteps = names
	}
}

// WithPrevious sets the explicit previous steps.
func WithPrevious(names ...string) func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.AllowedPreviousSteps = names
	}
}

// SupportWorkflow returns the "Support" workflow: Open(10), InProgress(20), Resolved(30),
// Cancelled(40) in that order, without explicit allow-lists.
func SupportWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:           uuid.New().String(),
		Name:         "Support",
		Active:       true,
		Version:      1,
		LastStepCode: CancelledCode,
		Steps: []*models.WorkflowStep{
			CreateTestStep(OpenCode, "Open", 1, models.CategoryNew),
			CreateTestStep(InProgressCode, "InProgress", 2, models.CategoryInProgress),
			CreateTestStep(ResolvedCode, "Resolved", 3, models.CategoryClosed),
			CreateTestStep(CancelledCode, "Cancelled", 4, models.CategoryCancelled),
		},
	}
}

// NewDraftWorkflow returns an unsaved workflow whose steps carry no codes yet.
func NewDraftWorkflow(name string, steps ...*models.WorkflowStep) *models.Workflow {
	return &models.Workflow{
		Name:   name,
		Active: true,
		Steps:  steps,
	}
}

// CreateTestTicket creates a ticket on the given workflow step.
func CreateTestTicket(workflowID string, stepCode int) *models.Ticket {
	return &models.Ticket{
		ID:              uuid.New().String(),
		Title:           "Printer on fire",
		WorkflowID:      workflowID,
		CurrentStepCode: stepCode,
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
