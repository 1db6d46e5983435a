package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/ticketflow/pkg/events"
	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/workflow"
	"github.com/google/uuid"
)

// Workflow is the workflow definition store.
type Workflow struct {
	persistence persistence.Persistence
	options
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, opts ...Option) *Workflow {
	return &Workflow{
		persistence: persistence,
		options:     newOptions(persistence, "workflow_service", opts),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every workflow definition.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.workflows.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Get returns the workflow or an error matching persistence.ErrWorkflowNotFound.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	found, err := w.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if found == nil {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return found, nil
}

// Create stores a new workflow definition. Any id or step code in the input is ignored for the
// workflow itself; step codes must be absent.
func (w *Workflow) Create(ctx context.Context, incoming *models.Workflow) (*models.Workflow, error) {
	if incoming == nil {
		return nil, invalidRequest("workflow is required")
	}

	prepared, err := workflow.Prepare(nil, incoming)
	if err != nil {
		w.metrics.RecordWorkflowSave("invalid")

		return nil, err
	}

	prepared.ID = ""

	return w.store(ctx, prepared, true)
}

// Update replaces the definition of an existing workflow. When incoming.Version is set it must
// match the stored version. Steps submitted without a code keep the code of the stored step
// with the same name.
func (w *Workflow) Update(ctx context.Context, id string, incoming *models.Workflow) (*models.Workflow, error) {
	if incoming == nil {
		return nil, invalidRequest("workflow is required")
	}

	existing, err := w.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	incoming = incoming.Clone()
	adoptStepCodes(existing, incoming)

	if incoming.Version != 0 && incoming.Version != existing.Version {
		w.metrics.RecordWorkflowSave("conflict")

		return nil, persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowVersionConflict)
	}

	prepared, err := workflow.Prepare(existing, incoming)
	if err != nil {
		w.metrics.RecordWorkflowSave("invalid")

		return nil, err
	}

	return w.store(ctx, prepared, false)
}

// Import creates or updates the workflow described by a YAML or JSON document. An existing
// workflow with the same name is updated.
func (w *Workflow) Import(ctx context.Context, data []byte, format workflow.Format) (*models.Workflow, error) {
	incoming, err := workflow.ParseDocument(data, format)
	if err != nil {
		w.metrics.RecordWorkflowSave("invalid")

		return nil, err
	}

	existing, err := w.workflows.GetByName(ctx, strings.TrimSpace(incoming.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to look up workflow %q: %w", incoming.Name, err)
	}

	if existing == nil {
		return w.Create(ctx, incoming)
	}

	incoming.Version = 0

	return w.Update(ctx, existing.ID, incoming)
}

// adoptStepCodes gives steps without a code the code of the stored step with the same name,
// so resubmitting a definition keeps tickets on their steps. Codes already claimed by another
// submitted step are left alone.
func adoptStepCodes(existing, incoming *models.Workflow) {
	claimed := make(map[int]bool)

	for _, step := range incoming.Steps {
		if step != nil && step.StepCode != 0 {
			claimed[step.StepCode] = true
		}
	}

	for _, step := range incoming.Steps {
		if step == nil || step.StepCode != 0 {
			continue
		}

		stored := existing.StepByName(strings.TrimSpace(step.StepName))
		if stored == nil || claimed[stored.StepCode] {
			continue
		}

		step.StepCode = stored.StepCode
		claimed[stored.StepCode] = true
	}
}

// Validate runs every check Import would run without storing anything. It returns the
// definition as it would be stored.
func (w *Workflow) Validate(ctx context.Context, data []byte, format workflow.Format) (*models.Workflow, error) {
	incoming, err := workflow.ParseDocument(data, format)
	if err != nil {
		return nil, err
	}

	existing, err := w.workflows.GetByName(ctx, strings.TrimSpace(incoming.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to look up workflow %q: %w", incoming.Name, err)
	}

	if existing != nil {
		adoptStepCodes(existing, incoming)
	}

	return workflow.Prepare(existing, incoming)
}

func (w *Workflow) store(ctx context.Context, prepared *models.Workflow, created bool) (*models.Workflow, error) {
	err := w.checkNameAvailable(ctx, prepared)
	if err != nil {
		w.metrics.RecordWorkflowSave("invalid")

		return nil, err
	}

	err = w.workflows.Save(ctx, prepared)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrWorkflowNameTaken):
			w.metrics.RecordWorkflowSave("invalid")

			return nil, nameTaken(prepared.Name)
		case persistence.IsConflict(err):
			w.metrics.RecordWorkflowSave("conflict")
		default:
			w.metrics.RecordWorkflowSave("error")
		}

		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.metrics.RecordWorkflowSave("saved")
	w.logger.InfoContext(ctx, "workflow saved",
		"workflow_id", prepared.ID,
		"version", prepared.Version,
		"steps", len(prepared.Steps),
	)

	event := events.WorkflowSaved{
		BaseEvent:  events.NewBaseEvent(uuid.NewString(), events.WorkflowSavedEvent),
		WorkflowID: prepared.ID,
		Name:       prepared.Name,
		Version:    prepared.Version,
		StepCount:  len(prepared.Steps),
		Created:    created,
	}

	err = w.publisher.Publish(ctx, prepared.ID, event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish workflow saved event", "workflow_id", prepared.ID, "error", err)
	}

	return prepared, nil
}

func (w *Workflow) checkNameAvailable(ctx context.Context, prepared *models.Workflow) error {
	other, err := w.workflows.GetByName(ctx, prepared.Name)
	if err != nil {
		return fmt.Errorf("failed to check workflow name: %w", err)
	}

	if other != nil && other.ID != prepared.ID {
		return nameTaken(prepared.Name)
	}

	return nil
}

func nameTaken(name string) error {
	return workflow.NewValidationError(workflow.Problem{
		Field:   "name",
		Code:    workflow.CodeNameTaken,
		Message: fmt.Sprintf("workflow name %q is already in use", name),
	})
}
