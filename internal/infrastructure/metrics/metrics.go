// Package metrics exposes lumen's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lumen"

// Metrics holds all Prometheus metrics for lumen.
type Metrics struct {
	registry *prometheus.Registry

	// Capture
	CaptureOutcomes *prometheus.CounterVec

	// Signals
	ScreenLuma prometheus.Gauge
	AmbientLux prometheus.Gauge
	AmbientOK  prometheus.Gauge

	// Predictor
	Brightness  prometheus.Gauge
	Decisions   *prometheus.CounterVec
	Echoes      prometheus.Counter
	Overrides   prometheus.Counter
	Preferences prometheus.Gauge

	// Device
	BrightnessWrites  prometheus.Counter
	BrightnessReports prometheus.Counter
}

// New creates the metrics on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CaptureOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_outcomes_total",
				Help:      "Capture attempts by outcome",
			},
			[]string{"outcome"},
		),

		ScreenLuma: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "screen_luma_percent",
			Help:      "Perceived luminance of the last captured frame",
		}),
		AmbientLux: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambient_lux",
			Help:      "Last ambient light reading",
		}),
		AmbientOK: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambient_available",
			Help:      "1 when the ambient light source returned a reading",
		}),

		Brightness: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brightness_percent",
			Help:      "Last brightness decided or learned",
		}),
		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Brightness decisions by source",
			},
			[]string{"source"},
		),
		Echoes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echoes_total",
			Help:      "Brightness reports recognised as the device settling on a decision",
		}),
		Overrides: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_total",
			Help:      "Manual brightness changes learned as preferences",
		}),
		Preferences: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preferences",
			Help:      "Number of learned preferences",
		}),

		BrightnessWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brightness_writes_total",
			Help:      "Brightness values written to the backlight",
		}),
		BrightnessReports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brightness_reports_total",
			Help:      "External backlight changes observed",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CaptureOutcome counts one capture attempt.
func (m *Metrics) CaptureOutcome(outcome string) {
	m.CaptureOutcomes.WithLabelValues(outcome).Inc()
}

// BrightnessApplied counts a backlight write.
func (m *Metrics) BrightnessApplied(uint8) {
	m.BrightnessWrites.Inc()
}

// BrightnessReported counts an external backlight change.
func (m *Metrics) BrightnessReported(uint8) {
	m.BrightnessReports.Inc()
}
