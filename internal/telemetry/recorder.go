package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/lumen/internal/infrastructure/metrics"
	"github.com/nerrad567/lumen/internal/mailbox"
	"github.com/nerrad567/lumen/internal/predictor"
)

const (
	// DefaultSampleInterval bounds how often luma and ambient samples are
	// written to the time series.
	DefaultSampleInterval = 10 * time.Second

	overrideQueueSize = 16
)

// Series is the time-series sink, satisfied by *influxdb.Client.
type Series interface {
	WriteDecision(key string, brightness uint8, learned bool)
	WriteOverride(key string, brightness uint8, previous *uint8)
	WriteAmbient(lux float64)
	WriteLuma(luma uint8)
}

// Publisher is the MQTT sink, satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Topics names the MQTT topics the Recorder publishes to.
type Topics struct {
	State    string
	Override string
}

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Snapshot is the latest known state of the control loop.
type Snapshot struct {
	Brightness *uint8    `json:"brightness"`
	Key        string    `json:"key,omitempty"`
	Learned    bool      `json:"learned"`
	Lux        *float64  `json:"lux"`
	Luma       *uint8    `json:"luma"`
	Decisions  uint64    `json:"decisions"`
	Overrides  uint64    `json:"overrides"`
	Echoes     uint64    `json:"echoes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OverrideEvent is published for every learned override.
type OverrideEvent struct {
	Key        string    `json:"key"`
	Brightness uint8     `json:"brightness"`
	Previous   *uint8    `json:"previous"`
	At         time.Time `json:"at"`
}

// Options configures a Recorder. Every sink is optional.
type Options struct {
	Metrics        *metrics.Metrics
	Series         Series
	Publisher      Publisher
	Topics         Topics
	SampleInterval time.Duration
	Logger         Logger
}

// Recorder implements predictor.Observer.
type Recorder struct {
	metrics   *metrics.Metrics
	series    Series
	publisher Publisher
	topics    Topics
	interval  time.Duration
	logger    Logger
	now       func() time.Time

	mu   sync.Mutex
	snap Snapshot

	// Owned by the control loop.
	lastLumaWrite    time.Time
	lastAmbientWrite time.Time

	states        *mailbox.Mailbox[Snapshot]
	overrides     chan OverrideEvent
	droppedEvents atomic.Uint64
}

var _ predictor.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder for opts.
func NewRecorder(opts Options) *Recorder {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		metrics:   opts.Metrics,
		series:    opts.Series,
		publisher: opts.Publisher,
		topics:    opts.Topics,
		interval:  opts.SampleInterval,
		logger:    opts.Logger,
		now:       time.Now,
		states:    mailbox.New[Snapshot](),
		overrides: make(chan OverrideEvent, overrideQueueSize),
	}
}

// SetPreferenceCount seeds the preference gauge after the table is loaded.
func (r *Recorder) SetPreferenceCount(n int) {
	if r.metrics != nil {
		r.metrics.Preferences.Set(float64(n))
	}
}

// Snapshot returns a copy of the latest state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Luma implements predictor.Observer.
func (r *Recorder) Luma(percent uint8) {
	now := r.now()
	r.mu.Lock()
	r.snap.Luma = &percent
	r.snap.UpdatedAt = now
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ScreenLuma.Set(float64(percent))
	}
	if r.series != nil && now.Sub(r.lastLumaWrite) >= r.interval {
		r.lastLumaWrite = now
		r.series.WriteLuma(percent)
	}
}

// Ambient implements predictor.Observer.
func (r *Recorder) Ambient(lux float64, ok bool) {
	now := r.now()
	r.mu.Lock()
	if ok {
		r.snap.Lux = &lux
	} else {
		r.snap.Lux = nil
	}
	r.mu.Unlock()

	if r.metrics != nil {
		if ok {
			r.metrics.AmbientLux.Set(lux)
			r.metrics.AmbientOK.Set(1)
		} else {
			r.metrics.AmbientOK.Set(0)
		}
	}
	if ok && r.series != nil && now.Sub(r.lastAmbientWrite) >= r.interval {
		r.lastAmbientWrite = now
		r.series.WriteAmbient(lux)
	}
}

// Decision implements predictor.Observer.
func (r *Recorder) Decision(key predictor.Key, brightness uint8, learned bool) {
	snap := r.update(func(s *Snapshot) {
		s.Brightness = &brightness
		s.Key = key.String()
		s.Learned = learned
		s.Decisions++
	})

	if r.metrics != nil {
		r.metrics.Brightness.Set(float64(brightness))
		r.metrics.Decisions.WithLabelValues(source(learned)).Inc()
	}
	if r.series != nil {
		r.series.WriteDecision(key.String(), brightness, learned)
	}
	if r.publisher != nil {
		r.states.Offer(snap)
	}
}

// Echo implements predictor.Observer.
func (r *Recorder) Echo(predictor.Key, uint8) {
	r.update(func(s *Snapshot) { s.Echoes++ })
	if r.metrics != nil {
		r.metrics.Echoes.Inc()
	}
}

// Override implements predictor.Observer.
func (r *Recorder) Override(key predictor.Key, brightness uint8, previous *uint8) {
	snap := r.update(func(s *Snapshot) {
		s.Brightness = &brightness
		s.Key = key.String()
		s.Learned = true
		s.Overrides++
	})

	if r.metrics != nil {
		r.metrics.Brightness.Set(float64(brightness))
		r.metrics.Overrides.Inc()
		if previous == nil {
			r.metrics.Preferences.Inc()
		}
	}
	if r.series != nil {
		r.series.WriteOverride(key.String(), brightness, previous)
	}
	if r.publisher != nil {
		r.states.Offer(snap)
		select {
		case r.overrides <- OverrideEvent{Key: key.String(), Brightness: brightness, Previous: previous, At: snap.UpdatedAt}:
		default:
			r.droppedEvents.Add(1)
		}
	}
}

func (r *Recorder) update(fn func(*Snapshot)) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.snap)
	r.snap.UpdatedAt = r.now()
	return r.snap
}

// Run publishes state and override events until ctx is cancelled. Without a
// Publisher it returns immediately.
func (r *Recorder) Run(ctx context.Context) {
	if r.publisher == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.states.Ready():
			if snap, ok := r.states.Take(); ok {
				r.publish(r.topics.State, snap, true)
			}
		case ev := <-r.overrides:
			r.publish(r.topics.Override, ev, false)
		}
	}
}

func (r *Recorder) publish(topic string, v any, retained bool) {
	if topic == "" {
		return
	}
	if err := r.publisher.PublishJSON(topic, v, retained); err != nil {
		r.logger.Debug("telemetry publish failed", "topic", topic, "error", err)
	}
}

// Dropped returns how many state and override messages were discarded
// because publishing fell behind.
func (r *Recorder) Dropped() uint64 {
	return r.states.Drops() + r.droppedEvents.Load()
}

func source(learned bool) string {
	if learned {
		return "learned"
	}
	return "default"
}
