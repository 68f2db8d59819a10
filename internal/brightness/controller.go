package brightness

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Defaults for Config.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultSettleWindow = time.Second

	// maxConsecutiveFailures is how many writes in a row may fail before Run gives up.
	maxConsecutiveFailures = 3
)

// DecisionSource yields decisions. Ready is signalled when Take may succeed.
type DecisionSource interface {
	Ready() <-chan struct{}
	Take() (uint8, bool)
}

// Report is an external brightness change and when it was observed.
type Report struct {
	Percent uint8
	At      time.Time
}

// ReportSink accepts reports of external changes without blocking.
type ReportSink interface {
	Offer(r Report)
}

// Metrics records device activity.
type Metrics interface {
	BrightnessApplied(percent uint8)
	BrightnessReported(percent uint8)
}

// Logger is the logging interface used by the brightness controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) BrightnessApplied(uint8)  {}
func (noopMetrics) BrightnessReported(uint8) {}

// Config tunes a Controller.
type Config struct {
	// PollInterval is how often the device is read; zero selects the default.
	PollInterval time.Duration

	// SettleWindow is how long after a write intermediate readings between
	// the old and new value are treated as the device catching up.
	SettleWindow time.Duration

	// WatchPaths are files whose modification triggers an immediate read.
	WatchPaths []string
}

// transition tracks a write the device may still be ramping towards.
type transition struct {
	from, to uint64
	until    time.Time
}

func (t transition) covers(raw uint64, now time.Time) bool {
	if now.After(t.until) {
		return false
	}
	lo, hi := min(t.from, t.to), max(t.from, t.to)
	return raw >= lo && raw <= hi
}

// Controller applies decisions and reports external changes.
type Controller struct {
	dev       Device
	decisions DecisionSource
	reports   ReportSink
	cfg       Config

	logger  Logger
	metrics Metrics
	now     func() time.Time

	current  uint64
	pending  transition
	failures int
}

// NewController creates a controller for dev.
func NewController(dev Device, decisions DecisionSource, reports ReportSink, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	return &Controller{
		dev:       dev,
		decisions: decisions,
		reports:   reports,
		cfg:       cfg,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		now:       time.Now,
	}
}

// SetLogger sets the logger.
func (c *Controller) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetMetrics sets the metrics recorder.
func (c *Controller) SetMetrics(m Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// Run serves decisions and watches the device until ctx is cancelled.
// It returns an error when the device cannot be read at start or when
// writes keep failing.
func (c *Controller) Run(ctx context.Context) error {
	raw, err := c.dev.Read()
	if err != nil {
		return fmt.Errorf("reading initial brightness: %w", err)
	}
	c.current = raw
	c.logger.Info("brightness controller started",
		"brightness", ToPercent(raw, c.dev.Max()),
		"raw", raw,
		"max", c.dev.Max())

	events, errs, closeWatch := c.watch()
	defer closeWatch()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-c.decisions.Ready():
			if v, ok := c.decisions.Take(); ok {
				if err := c.apply(v); err != nil {
					return err
				}
			}

		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.observe()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("backlight watch error", "error", err)

		case <-ticker.C:
			c.observe()
		}
	}
}

// watch starts an fsnotify watcher on the configured paths. Without one the
// poll ticker alone detects changes.
func (c *Controller) watch() (<-chan fsnotify.Event, <-chan error, func()) {
	if len(c.cfg.WatchPaths) == 0 {
		return nil, nil, func() {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warn("backlight watch unavailable, polling only", "error", err)
		return nil, nil, func() {}
	}

	added := 0
	for _, p := range c.cfg.WatchPaths {
		if err := w.Add(p); err != nil {
			c.logger.Debug("not watching backlight attribute", "path", p, "error", err)
			continue
		}
		added++
	}
	if added == 0 {
		w.Close() //nolint:errcheck // nothing to watch
		return nil, nil, func() {}
	}
	return w.Events, w.Errors, func() { w.Close() } //nolint:errcheck // shutdown
}

func (c *Controller) apply(percent uint8) error {
	raw := ToRaw(percent, c.dev.Max())
	if raw == c.current {
		return nil
	}

	if err := c.dev.Write(raw); err != nil {
		c.failures++
		c.logger.Error("writing brightness",
			"brightness", percent,
			"consecutive_failures", c.failures,
			"error", err)
		if c.failures >= maxConsecutiveFailures {
			return fmt.Errorf("giving up after %d consecutive write failures: %w", c.failures, err)
		}
		return nil
	}

	c.failures = 0
	c.pending = transition{from: c.current, to: raw, until: c.now().Add(c.cfg.SettleWindow)}
	c.current = raw
	c.metrics.BrightnessApplied(percent)
	c.logger.Debug("brightness applied", "brightness", percent, "raw", raw)
	return nil
}

func (c *Controller) observe() {
	raw, err := c.dev.Read()
	if err != nil {
		c.logger.Warn("reading brightness", "error", err)
		return
	}
	if raw == c.current {
		return
	}
	if c.pending.covers(raw, c.now()) {
		// Still ramping towards our own write.
		return
	}

	c.current = raw
	c.pending = transition{}
	percent := ToPercent(raw, c.dev.Max())
	c.reports.Offer(Report{Percent: percent, At: c.now()})
	c.metrics.BrightnessReported(percent)
	c.logger.Info("external brightness change", "brightness", percent, "raw", raw)
}
