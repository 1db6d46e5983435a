package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/ticketflow/pkg/assignment"
	"github.com/dukex/ticketflow/pkg/events"
	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/otelhelper"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/transition"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// maxAttempts bounds how often a transition is tried when it loses a race.
const maxAttempts = 2

// invalidator is implemented by workflow repositories that cache definitions.
type invalidator interface {
	Invalidate(ctx context.Context, workflowID string) error
}

// TransitionResult is what a committed transition reports back.
type TransitionResult struct {
	Ticket           *models.Ticket `json:"ticket"`
	AppliedStepName  string         `json:"applied_step_name"`
	PreviousStepName string         `json:"previous_step_name"`
	WorkgroupName    string         `json:"workgroup_name"`
}

// Transition is the only path by which a ticket's step changes.
type Transition struct {
	tickets  persistence.TicketRepository
	resolver *assignment.Resolver
	options
}

// NewTransition creates a new transition executor.
func NewTransition(persistence persistence.Persistence, opts ...Option) *Transition {
	return &Transition{
		tickets:  persistence.TicketRepository(),
		resolver: assignment.NewResolver(persistence.DirectoryRepository()),
		options:  newOptions(persistence, "transition_service", opts),
	}
}

// committed carries what a successful attempt needs for reporting.
type committed struct {
	ticket   *models.Ticket
	workflow *models.Workflow
	fromCode int
	fromName string
	toStep   *models.WorkflowStep
	decision transition.Decision
}

// Transition moves the ticket to toStepCode on behalf of actor. It returns a *DeniedError
// when the workflow does not permit the move and a conflict error when the ticket kept
// changing underneath it.
func (t *Transition) Transition(ctx context.Context, ticketID string, toStepCode int, actor string) (*TransitionResult, error) {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "ticket.transition",
		attribute.String(otelhelper.TicketIDKey, ticketID),
		attribute.Int(otelhelper.ToStepCodeKey, toStepCode),
		attribute.String(otelhelper.ActorKey, actor),
	)
	defer span.End()

	if ticketID == "" || actor == "" {
		err := invalidRequest("ticket id and actor are required")
		t.metrics.RecordTransition(metrics.OutcomeError, "", time.Since(started))

		return nil, err
	}

	var (
		done *committed
		err  error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		span.SetAttributes(attribute.Int(otelhelper.AttemptKey, attempt))

		done, err = t.attempt(ctx, ticketID, toStepCode, actor)
		if err == nil || !persistence.IsConflict(err) || attempt == maxAttempts {
			break
		}

		t.metrics.RecordRetry()
		t.logger.InfoContext(ctx, "transition lost a concurrent update, retrying",
			"ticket_id", ticketID,
			"to_step_code", toStepCode,
			"attempt", attempt,
		)
	}

	if err != nil {
		t.recordFailure(ctx, err, started, ticketID, toStepCode)

		var deniedErr *DeniedError
		if errors.As(err, &deniedErr) {
			otelhelper.SetDenied(span, deniedErr.Reason)
		} else {
			otelhelper.SetError(span, err)
		}

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, done.workflow.ID),
		attribute.Int(otelhelper.WorkflowVersionKey, done.workflow.Version),
		attribute.Int(otelhelper.FromStepCodeKey, done.fromCode),
		attribute.String(otelhelper.RuleKey, string(done.decision.Rule)),
	)

	t.metrics.RecordTransition(metrics.OutcomeApplied, string(done.decision.Rule), time.Since(started))
	t.logger.InfoContext(ctx, "ticket transitioned",
		"ticket_id", ticketID,
		"workflow_id", done.workflow.ID,
		"from", done.fromName,
		"to", done.toStep.StepName,
		"rule", done.decision.Rule,
		"actor", actor,
	)

	t.publishTransitioned(ctx, done, actor)

	workgroupName, err := t.resolver.WorkgroupName(ctx, done.ticket.WorkgroupID)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to resolve workgroup name", "ticket_id", ticketID, "error", err)
	}

	return &TransitionResult{
		Ticket:           done.ticket,
		AppliedStepName:  done.toStep.StepName,
		PreviousStepName: done.fromName,
		WorkgroupName:    workgroupName,
	}, nil
}

// attempt runs one load, validate, commit cycle against a fresh snapshot.
func (t *Transition) attempt(ctx context.Context, ticketID string, toStepCode int, actor string) (*committed, error) {
	ticket, err := t.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}

	if ticket == nil {
		return nil, persistence.NewTicketError("Transition", ticketID, persistence.ErrTicketNotFound)
	}

	workflow, err := t.workflows.GetByID(ctx, ticket.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow == nil {
		return nil, &DeniedError{
			TicketID: ticketID,
			Reason:   transition.ReasonWorkflowMissing,
			Rule:     transition.RuleNone,
		}
	}

	// A request for the current step is a no-op denial even when that step was removed.
	toStep := workflow.StepByCode(toStepCode)
	if toStep == nil && toStepCode != ticket.CurrentStepCode {
		return nil, fmt.Errorf("%w: step code %d in workflow %s", ErrStepNotFound, toStepCode, workflow.ID)
	}

	decision := transition.IsAllowed(workflow, ticket.CurrentStepCode, toStepCode)
	if !decision.Allowed {
		return nil, &DeniedError{
			TicketID: ticketID,
			Reason:   decision.Reason,
			Rule:     decision.Rule,
		}
	}

	target, err := t.resolver.Resolve(ctx, toStep)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment: %w", err)
	}

	fromName := ""
	if fromStep := workflow.StepByCode(ticket.CurrentStepCode); fromStep != nil {
		fromName = fromStep.StepName
	}

	change := &models.TransitionChange{
		TicketID:              ticket.ID,
		ExpectedStepCode:      ticket.CurrentStepCode,
		WorkflowID:            workflow.ID,
		WorkflowVersion:       workflow.Version,
		ToStepCode:            toStep.StepCode,
		WorkgroupID:           target.WorkgroupID,
		ResponsibleEmployeeID: target.ResponsibleEmployeeID,
		History: &models.HistoryEntry{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			FieldName: models.HistoryFieldStatus,
			OldValue:  fromName,
			NewValue:  toStep.StepName,
			ChangedBy: actor,
			Timestamp: time.Now().UTC(),
		},
	}

	updated, err := t.tickets.ApplyTransition(ctx, change)
	if err != nil {
		if persistence.IsConflict(err) {
			// The cached definition may be what went stale.
			t.invalidate(ctx, workflow.ID)

			return nil, err
		}

		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	return &committed{
		ticket:   updated,
		workflow: workflow,
		fromCode: change.ExpectedStepCode,
		fromName: fromName,
		toStep:   toStep,
		decision: decision,
	}, nil
}

func (t *Transition) invalidate(ctx context.Context, workflowID string) {
	cache, ok := t.workflows.(invalidator)
	if !ok {
		return
	}

	err := cache.Invalidate(ctx, workflowID)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to invalidate cached workflow", "workflow_id", workflowID, "error", err)
	}
}

func (t *Transition) recordFailure(ctx context.Context, err error, started time.Time, ticketID string, toStepCode int) {
	var deniedErr *DeniedError

	switch {
	case errors.As(err, &deniedErr):
		t.metrics.RecordTransition(metrics.OutcomeDenied, string(deniedErr.Rule), time.Since(started))
		t.logger.InfoContext(ctx, "transition denied",
			"ticket_id", ticketID,
			"to_step_code", toStepCode,
			"reason", deniedErr.Reason,
		)
	case IsNotFoundError(err):
		t.metrics.RecordTransition(metrics.OutcomeNotFound, "", time.Since(started))
	case IsConflictError(err):
		t.metrics.RecordTransition(metrics.OutcomeConflict, "", time.Since(started))
		t.logger.WarnContext(ctx, "transition conflicted twice", "ticket_id", ticketID, "error", err)
	default:
		t.metrics.RecordTransition(metrics.OutcomeError, "", time.Since(started))
		t.logger.ErrorContext(ctx, "transition failed", "ticket_id", ticketID, "error", err)
	}
}

func (t *Transition) publishTransitioned(ctx context.Context, done *committed, actor string) {
	event := events.TicketTransitioned{
		BaseEvent:             events.NewBaseEvent(uuid.NewString(), events.TicketTransitionedEvent),
		TicketID:              done.ticket.ID,
		WorkflowID:            done.workflow.ID,
		WorkflowVersion:       done.workflow.Version,
		FromStepCode:          done.fromCode,
		ToStepCode:            done.toStep.StepCode,
		FromStepName:          done.fromName,
		ToStepName:            done.toStep.StepName,
		WorkgroupID:           done.ticket.WorkgroupID,
		ResponsibleEmployeeID: done.ticket.ResponsibleEmployeeID,
		Actor:                 actor,
	}

	err := t.publisher.Publish(ctx, done.ticket.ID, event)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to publish ticket transitioned event", "ticket_id", done.ticket.ID, "error", err)
	}
}

// GetTicket returns the ticket or an error matching persistence.ErrTicketNotFound.
func (t *Transition) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := t.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}

	if ticket == nil {
		return nil, persistence.NewTicketError("GetTicket", ticketID, persistence.ErrTicketNotFound)
	}

	return ticket, nil
}

// AllowedSteps lists every step the ticket may move to from its current step, in workflow
// order. A ticket whose workflow is missing has no allowed steps.
func (t *Transition) AllowedSteps(ctx context.Context, ticketID string) ([]*models.WorkflowStep, error) {
	ticket, err := t.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	workflow, err := t.workflows.GetByID(ctx, ticket.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow == nil {
		return []*models.WorkflowStep{}, nil
	}

	return transition.AllowedSteps(workflow, ticket.CurrentStepCode), nil
}

// History returns the ticket's audit trail, oldest first.
func (t *Transition) History(ctx context.Context, ticketID string) ([]*models.HistoryEntry, error) {
	history, err := t.tickets.History(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return history, nil
}

// Open places a new ticket on its workflow. The ticket starts on the lowest-order step unless
// CurrentStepCode names another step of the workflow. No history entry is written.
func (t *Transition) Open(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	if ticket == nil || ticket.WorkflowID == "" {
		return nil, invalidRequest("ticket with a workflow id is required")
	}

	workflow, err := t.workflows.GetByID(ctx, ticket.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("Open", ticket.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	if !workflow.Active {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, workflow.Name)
	}

	step := workflow.FirstStep()
	if ticket.CurrentStepCode != 0 {
		step = workflow.StepByCode(ticket.CurrentStepCode)
		if step == nil {
			return nil, fmt.Errorf("%w: step code %d in workflow %s", ErrStepNotFound, ticket.CurrentStepCode, workflow.ID)
		}
	}

	target, err := t.resolver.Resolve(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment: %w", err)
	}

	opened := *ticket
	if opened.ID == "" {
		opened.ID = uuid.NewString()
	}

	opened.CurrentStepCode = step.StepCode
	opened.WorkgroupID = target.WorkgroupID
	opened.ResponsibleEmployeeID = target.ResponsibleEmployeeID

	err = t.tickets.Create(ctx, &opened)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	t.logger.InfoContext(ctx, "ticket opened", "ticket_id", opened.ID, "workflow_id", workflow.ID, "step", step.StepName)

	err = t.publisher.Publish(ctx, opened.ID, events.TicketOpened{
		BaseEvent: events.NewBaseEvent(uuid.NewString(), events.TicketOpenedEvent),
		Ticket:    &opened,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "failed to publish ticket opened event", "ticket_id", opened.ID, "error", err)
	}

	return &opened, nil
}
