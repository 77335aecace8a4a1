package bus

import (
	"fmt"

	"github.com/openlease/harrier/internal/domain"
)

// New creates an event bus based on the configuration.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unknown event bus type: %s", cfg.Type)
	}
}
