package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ticketflow/pkg/channels/gochannel"
	"github.com/dukex/ticketflow/pkg/channels/kafka"
	"github.com/dukex/ticketflow/pkg/eventbus"
)

// NewEventBus creates the bus transition and workflow events are published on. The none
// provider drops every event.
//
// nolint:ireturn // Returning interface is intentional to select the provider at runtime
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "none":
		return eventbus.NewNoopEventBus(), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), kafka.ParseBrokers(brokers), "ticketflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
