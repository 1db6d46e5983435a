package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ticketflow/pkg/events"
)

// NoopEventBus drops every event. It is used when no event bus is configured.
type NoopEventBus struct{}

func NewNoopEventBus() EventBus {
	return NoopEventBus{}
}

func (NoopEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (NoopEventBus) Publish(context.Context, string, Event) error {
	return nil
}

func (NoopEventBus) Handle(events.EventType, EventHandler) error {
	return nil
}

func (NoopEventBus) Subscribe(context.Context) error {
	return nil
}

func (NoopEventBus) Close() error {
	return nil
}
