package notify

import (
	"context"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// Publisher receives created sightings.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, s *api.Sighting) error
}

// Options selects the enabled publishers.
type Options struct {
	ShoutrrrEnabled bool
	Shoutrrr        ShoutrrrConfig
	MQTTEnabled     bool
	MQTT            MQTTConfig
}

// Setup builds the enabled publishers. The returned func releases broker
// connections and is safe to call when nothing was enabled.
func Setup(opts Options, log logger.Logger) ([]Publisher, func(), error) {
	var (
		publishers []Publisher
		closers    []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if opts.ShoutrrrEnabled {
		p, err := NewShoutrrrPublisher(opts.Shoutrrr, log)
		if err != nil {
			return nil, closeAll, err
		}
		publishers = append(publishers, p)
	}

	if opts.MQTTEnabled {
		p, err := NewMQTTPublisher(opts.MQTT, log)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		publishers = append(publishers, p)
		closers = append(closers, p.Close)
	}

	return publishers, closeAll, nil
}
