package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/ticketflow/pkg/eventbus"
	"github.com/dukex/ticketflow/pkg/events"
	"github.com/dukex/ticketflow/pkg/metrics"
)

// Activity consumes lifecycle events from the event bus and turns them into an activity log
// and per-type counters.
type Activity struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewActivity(logger *slog.Logger, m *metrics.Metrics) *Activity {
	return &Activity{
		logger:  logger.With("module", "activity"),
		metrics: m,
	}
}

// Register installs a handler for every lifecycle event type on subscriber. Subscribe must be
// called afterwards to start consuming.
func (a *Activity) Register(subscriber eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.TicketOpenedEvent:       a.ticketOpened,
		events.TicketTransitionedEvent: a.ticketTransitioned,
		events.WorkflowSavedEvent:      a.workflowSaved,
	}

	for eventType, handler := range handlers {
		err := subscriber.Handle(eventType, handler)
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	return nil
}

func (a *Activity) ticketOpened(ctx context.Context, event any) error {
	opened, ok := event.(*events.TicketOpened)
	if !ok || opened.Ticket == nil {
		return unexpectedEvent(events.TicketOpenedEvent, event)
	}

	a.logger.InfoContext(ctx, "Ticket opened",
		"event_id", opened.ID,
		"ticket_id", opened.Ticket.ID,
		"workflow_id", opened.Ticket.WorkflowID,
		"step_code", opened.Ticket.CurrentStepCode,
	)
	a.metrics.RecordEventConsumed(string(events.TicketOpenedEvent))

	return nil
}

func (a *Activity) ticketTransitioned(ctx context.Context, event any) error {
	transitioned, ok := event.(*events.TicketTransitioned)
	if !ok {
		return unexpectedEvent(events.TicketTransitionedEvent, event)
	}

	a.logger.InfoContext(ctx, "Ticket moved",
		"event_id", transitioned.ID,
		"ticket_id", transitioned.TicketID,
		"from", transitioned.FromStepName,
		"to", transitioned.ToStepName,
		"actor", transitioned.Actor,
	)
	a.metrics.RecordEventConsumed(string(events.TicketTransitionedEvent))

	return nil
}

func (a *Activity) workflowSaved(ctx context.Context, event any) error {
	saved, ok := event.(*events.WorkflowSaved)
	if !ok {
		return unexpectedEvent(events.WorkflowSavedEvent, event)
	}

	a.logger.InfoContext(ctx, "Workflow saved",
		"event_id", saved.ID,
		"workflow_id", saved.WorkflowID,
		"name", saved.Name,
		"version", saved.Version,
		"created", saved.Created,
	)
	a.metrics.RecordEventConsumed(string(events.WorkflowSavedEvent))

	return nil
}

func unexpectedEvent(eventType events.EventType, event any) error {
	return fmt.Errorf("unexpected payload %T for %s event", event, eventType)
}
