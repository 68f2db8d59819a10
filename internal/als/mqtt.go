package als

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/lumen/internal/mailbox"
)

// Subscriber is the part of the MQTT client the remote sensor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
}

type luxSample struct {
	lux float64
	at  time.Time
}

// MQTT reads lux published by a remote sensor.
//
// Payloads are a bare number ("153.2") or a JSON object with a "lux" field.
// Readings older than maxAge are reported as unavailable.
type MQTT struct {
	topic  string
	maxAge time.Duration
	inbox  *mailbox.Mailbox[luxSample]
	now    func() time.Time
	sub    Subscriber

	// Owned by the goroutine calling Lux.
	latest luxSample
	have   bool
}

// NewMQTT creates a remote sensor for topic. A zero maxAge never expires readings.
func NewMQTT(topic string, maxAge time.Duration) *MQTT {
	return &MQTT{
		topic:  topic,
		maxAge: maxAge,
		inbox:  mailbox.New[luxSample](),
		now:    time.Now,
	}
}

// Start subscribes to the sensor topic.
func (m *MQTT) Start(sub Subscriber, qos byte) error {
	if err := sub.Subscribe(m.topic, qos, m.handle); err != nil {
		return fmt.Errorf("als: subscribing to %s: %w", m.topic, err)
	}
	m.sub = sub
	return nil
}

// Close unsubscribes from the sensor topic. It is a no-op before Start.
func (m *MQTT) Close() error {
	if m.sub == nil {
		return nil
	}
	sub := m.sub
	m.sub = nil
	return sub.Unsubscribe(m.topic)
}

// handle runs on the MQTT client's goroutine.
func (m *MQTT) handle(_ string, payload []byte) error {
	lux, err := parseLux(payload)
	if err != nil {
		return err
	}
	m.inbox.Offer(luxSample{lux: lux, at: m.now()})
	return nil
}

// Lux implements Source.
func (m *MQTT) Lux() (float64, error) {
	if s, ok := m.inbox.Take(); ok {
		m.latest = s
		m.have = true
	}
	if !m.have {
		return 0, fmt.Errorf("%w: nothing received on %s", ErrUnavailable, m.topic)
	}
	if m.maxAge > 0 {
		if age := m.now().Sub(m.latest.at); age > m.maxAge {
			return 0, fmt.Errorf("%w: last reading %s old", ErrUnavailable, age.Round(time.Second))
		}
	}
	return m.latest.lux, nil
}

func parseLux(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return validLux(v)
	}

	var msg struct {
		Lux *float64 `json:"lux"`
	}
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return 0, fmt.Errorf("als: invalid lux payload %q: %w", text, err)
	}
	if msg.Lux == nil {
		return 0, fmt.Errorf("als: lux payload %q has no lux field", text)
	}
	return validLux(*msg.Lux)
}

func validLux(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("als: lux value %v out of range", v)
	}
	return v, nil
}
