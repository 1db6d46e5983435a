// Package web provides HTTP request and response types for the ticketflow API.
package web

import (
	"github.com/dukex/ticketflow/pkg/models"
)

// WorkflowRequest is the body of POST /workflows and PUT /workflows/:id. Structural rules are
// checked by the workflow store so that every problem is reported at once.
type WorkflowRequest struct {
	Name    string        `json:"name"`
	Active  *bool         `json:"active,omitempty"`
	Version int           `json:"version,omitempty" validate:"gte=0"`
	Steps   []StepRequest `json:"steps"`
}

// StepRequest is one step of a WorkflowRequest. StepCode is omitted for new steps.
type StepRequest struct {
	StepCode             int      `json:"step_code,omitempty"              validate:"gte=0"`
	StepName             string   `json:"step_name"`
	Order                int      `json:"order,omitempty"`
	CategoryCode         int      `json:"category_code"`
	WorkgroupID          *string  `json:"workgroup_id,omitempty"`
	AllowedNextSteps     []string `json:"allowed_next_steps,omitempty"`
	AllowedPreviousSteps []string `json:"allowed_previous_steps,omitempty"`
}

// ToModel converts the request into an unsaved workflow. Workflows are active unless the
// request says otherwise.
func (r WorkflowRequest) ToModel() *models.Workflow {
	workflow := &models.Workflow{
		Name:    r.Name,
		Active:  r.Active == nil || *r.Active,
		Version: r.Version,
		Steps:   make([]*models.WorkflowStep, 0, len(r.Steps)),
	}

	for _, step := range r.Steps {
		workflow.Steps = append(workflow.Steps, &models.WorkflowStep{
			StepCode:             step.StepCode,
			StepName:             step.StepName,
			Order:                step.Order,
			CategoryCode:         models.CategoryCode(step.CategoryCode),
			WorkgroupID:          step.WorkgroupID,
			AllowedNextSteps:     step.AllowedNextSteps,
			AllowedPreviousSteps: step.AllowedPreviousSteps,
		})
	}

	return workflow
}

// TransitionRequest is the body of POST /tickets/:id/transitions.
type TransitionRequest struct {
	StepCode int    `json:"step_code" validate:"required,gt=0"`
	Actor    string `json:"actor"     validate:"required,max=255"`
}

// OpenTicketRequest is the body of POST /tickets.
type OpenTicketRequest struct {
	ID         string `json:"id,omitempty"        validate:"omitempty,max=64,excludesall=/\\."`
	Title      string `json:"title"               validate:"required,max=255"`
	WorkflowID string `json:"workflow_id"         validate:"required"`
	StepCode   int    `json:"step_code,omitempty" validate:"gte=0"`
}

// StepSummary is an entry of GET /tickets/:id/allowed-steps.
type StepSummary struct {
	StepCode int    `json:"step_code"`
	StepName string `json:"step_name"`
}

// TransformAllowedSteps reduces workflow steps to the fields a client needs to offer a choice.
func TransformAllowedSteps(steps []*models.WorkflowStep) []StepSummary {
	summaries := make([]StepSummary, 0, len(steps))

	for _, step := range steps {
		summaries = append(summaries, StepSummary{StepCode: step.StepCode, StepName: step.StepName})
	}

	return summaries
}
