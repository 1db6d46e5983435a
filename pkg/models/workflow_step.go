package models

import "slices"

// CategoryCode is the coarse bucket a step belongs to.
type CategoryCode int

const (
	CategoryNew        CategoryCode = 10
	CategoryInProgress CategoryCode = 20
	CategoryClosed     CategoryCode = 30
	CategoryCancelled  CategoryCode = 40

	// CategoryLegacyCancelled is accepted on input and stored as CategoryCancelled.
	CategoryLegacyCancelled CategoryCode = 90
)

// Normalize maps legacy codes onto their current equivalent.
func (c CategoryCode) Normalize() CategoryCode {
	if c == CategoryLegacyCancelled {
		return CategoryCancelled
	}

	return c
}

func (c CategoryCode) String() string {
	switch c {
	case CategoryNew:
		return "new"
	case CategoryInProgress:
		return "in_progress"
	case CategoryClosed:
		return "closed"
	case CategoryCancelled, CategoryLegacyCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WorkflowStep is one stage in a workflow.
type WorkflowStep struct {
	StepCode             int          `json:"step_code"`
	StepName             string       `json:"step_name"                        validate:"required,max=255"`
	Order                int          `json:"order"`
	CategoryCode         CategoryCode `json:"category_code"                    validate:"oneof=10 20 30 40"`
	WorkgroupID          *string      `json:"workgroup_id,omitempty"`
	AllowedNextSteps     []string     `json:"allowed_next_steps,omitempty"     validate:"dive,required"`
	AllowedPreviousSteps []string     `json:"allowed_previous_steps,omitempty" validate:"dive,required"`
}

// IsCancellation reports whether the step is a terminal cancellation step.
func (s *WorkflowStep) IsCancellation() bool {
	return s.CategoryCode.Normalize() == CategoryCancelled
}

// AllowsNext reports whether name is listed as an explicit next step.
func (s *WorkflowStep) AllowsNext(name string) bool {
	return slices.Contains(s.AllowedNextSteps, name)
}

// AllowsPrevious reports whether name is listed as an explicit previous step.
func (s *WorkflowStep) AllowsPrevious(name string) bool {
	return slices.Contains(s.AllowedPreviousSteps, name)
}

func (s *WorkflowStep) Clone() *WorkflowStep {
	if s == nil {
		return nil
	}

	clone := *s
	clone.AllowedNextSteps = slices.Clone(s.AllowedNextSteps)
	clone.AllowedPreviousSteps = slices.Clone(s.AllowedPreviousSteps)

	if s.WorkgroupID != nil {
		id := *s.WorkgroupID
		clone.WorkgroupID = &id
	}

	return &clone
}
