package driver

import (
	"fmt"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

// Registry maps delivery channels to their drivers. Social posts ride the
// generic webhook driver; there is no dedicated social transport.
type Registry struct {
	drivers map[domain.Channel]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[domain.Channel]Driver)}
}

func (r *Registry) Register(channel domain.Channel, d Driver) error {
	if !channel.IsValid() {
		return fmt.Errorf("invalid channel %q", channel)
	}
	if d == nil {
		return fmt.Errorf("driver for channel %s is nil", channel)
	}
	r.drivers[channel] = d
	return nil
}

func (r *Registry) Lookup(channel domain.Channel) (Driver, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.drivers[channel]
	return d, ok
}

func (r *Registry) Channels() []domain.Channel {
	channels := make([]domain.Channel, 0, len(r.drivers))
	for channel := range r.drivers {
		channels = append(channels, channel)
	}
	return channels
}
