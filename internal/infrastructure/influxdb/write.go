package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDecision = "brightness_decision"
	MeasurementOverride = "brightness_override"
	MeasurementAmbient  = "ambient_lux"
	MeasurementLuma     = "screen_luma"
)

// WriteDecision records a brightness decision for a lighting condition.
// learned marks decisions taken from a stored preference rather than the
// default curve.
func (c *Client) WriteDecision(key string, brightness uint8, learned bool) {
	c.writePoint(decisionPoint(key, brightness, learned, time.Now()))
}

// WriteOverride records a manual adjustment that was learned.
// previous is nil when the condition had no stored preference.
func (c *Client) WriteOverride(key string, brightness uint8, previous *uint8) {
	c.writePoint(overridePoint(key, brightness, previous, time.Now()))
}

// WriteAmbient records an ambient light reading.
func (c *Client) WriteAmbient(lux float64) {
	c.writePoint(write.NewPoint(MeasurementAmbient, nil, map[string]any{"lux": lux}, time.Now()))
}

// WriteLuma records a screen content luma sample.
func (c *Client) WriteLuma(luma uint8) {
	c.writePoint(write.NewPoint(MeasurementLuma, nil, map[string]any{"percent": int64(luma)}, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if c.open.Load() {
		c.writeAPI.WritePoint(p)
	}
}

func decisionPoint(key string, brightness uint8, learned bool, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementDecision,
		map[string]string{"key": key},
		map[string]any{
			"brightness": int64(brightness),
			"learned":    learned,
		},
		ts)
}

func overridePoint(key string, brightness uint8, previous *uint8, ts time.Time) *write.Point {
	fields := map[string]any{"brightness": int64(brightness)}
	if previous != nil {
		fields["previous"] = int64(*previous)
	}
	return write.NewPoint(MeasurementOverride, map[string]string{"key": key}, fields, ts)
}
