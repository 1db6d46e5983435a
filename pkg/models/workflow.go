// Package models defines the core domain models for ticket workflows and their transitions.
package models

import "time"

// Workflow is a named, ordered set of steps defining a ticket's possible lifecycle.
type Workflow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"           validate:"required,max=255"`
	Active       bool            `json:"active"`
	Version      int             `json:"version"`
	LastStepCode int             `json:"last_step_code"`
	Steps        []*WorkflowStep `json:"steps"          validate:"min=1,dive"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StepByCode returns the step identified by code, or nil.
func (w *Workflow) StepByCode(code int) *WorkflowStep {
	for _, step := range w.Steps {
		if step.StepCode == code {
			return step
		}
	}

	return nil
}

// StepByName returns the step with the given name, or nil.
func (w *Workflow) StepByName(name string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.StepName == name {
			return step
		}
	}

	return nil
}

// FirstStep returns the step with the lowest order.
func (w *Workflow) FirstStep() *WorkflowStep {
	var first *WorkflowStep

	for _, step := range w.Steps {
		if first == nil || step.Order < first.Order {
			first = step
		}
	}

	return first
}

// Clone returns a deep copy so callers can mutate a definition without touching shared state.
func (w *Workflow) Clone() *Workflow {
	clone := *w
	clone.Steps = make([]*WorkflowStep, 0, len(w.Steps))

	for _, step := range w.Steps {
		clone.Steps = append(clone.Steps, step.Clone())
	}

	return &clone
}
