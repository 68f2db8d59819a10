package als

import (
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendIIO  = "iio"
	BackendTime = "time"
	BackendMQTT = "mqtt"
	BackendNone = "none"
)

// Source reports the current ambient light level.
type Source interface {
	// Lux returns the current reading or an error wrapping ErrUnavailable.
	Lux() (float64, error)
}

// Options configures New.
type Options struct {
	Backend string

	IIOPath string

	HourToLux map[int]float64

	MQTTTopic  string
	MQTTMaxAge time.Duration
	MQTTQoS    byte
	Subscriber Subscriber
}

// New builds the source for opts.Backend. The MQTT backend subscribes
// immediately.
func New(opts Options) (Source, error) {
	switch opts.Backend {
	case BackendIIO:
		return NewIIO(opts.IIOPath)
	case BackendTime:
		return NewTimeOfDay(opts.HourToLux)
	case BackendMQTT:
		if opts.Subscriber == nil {
			return nil, fmt.Errorf("als: mqtt backend requires an MQTT connection")
		}
		m := NewMQTT(opts.MQTTTopic, opts.MQTTMaxAge)
		if err := m.Start(opts.Subscriber, opts.MQTTQoS); err != nil {
			return nil, err
		}
		return m, nil
	case BackendNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// None never has a reading.
type None struct{}

// Lux implements Source.
func (None) Lux() (float64, error) {
	return 0, ErrUnavailable
}
