// Package cmd wires shared infrastructure for the OMLBoard binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/omlboard/omlboard/pkg/channels/gochannel"
	"github.com/omlboard/omlboard/pkg/channels/kafka"
	"github.com/omlboard/omlboard/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider.
// "gochannel" is in-process and needs no broker; "kafka" reads its
// brokers from the environment.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "omlboard")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
