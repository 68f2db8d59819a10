package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lumen/internal/als"
	"github.com/nerrad567/lumen/internal/brightness"
)

// Defaults for Config.
const (
	DefaultSettleWindow = time.Second
	DefaultTolerance    = 2

	persistTimeout = 250 * time.Millisecond

	// maxInFlight bounds the emissions kept while no report arrives.
	maxInFlight = 16
)

// DecisionSender delivers decisions without blocking.
type DecisionSender interface {
	Offer(brightness uint8)
}

// ReportReceiver yields brightness reports without blocking.
type ReportReceiver interface {
	Take() (brightness.Report, bool)
}

// Observer is notified of controller activity. Methods run on the
// controller's goroutine and must not block.
type Observer interface {
	Luma(percent uint8)
	Ambient(lux float64, ok bool)
	Decision(key Key, brightness uint8, learned bool)
	Echo(key Key, brightness uint8)
	// Override reports a learned adjustment; previous is nil for a new key.
	Override(key Key, brightness uint8, previous *uint8)
}

// Logger is the logging interface used by the predictor.
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

type noopObserver struct{}

func (noopObserver) Luma(uint8)                  {}
func (noopObserver) Ambient(float64, bool)       {}
func (noopObserver) Decision(Key, uint8, bool)   {}
func (noopObserver) Echo(Key, uint8)             {}
func (noopObserver) Override(Key, uint8, *uint8) {}

// Config tunes a Controller.
type Config struct {
	// Enabled controls whether decisions are emitted. Overrides are learned
	// either way.
	Enabled bool

	// SettleWindow is how long after a decision a matching report counts as
	// its echo.
	SettleWindow time.Duration

	// Tolerance is the largest difference, in percentage points, between a
	// decision and a report that still counts as an echo.
	Tolerance uint8
}

// emission is a decision that may still come back as a report.
type emission struct {
	key   Key
	value uint8
	at    time.Time
}

// Controller is the decision and learning engine.
type Controller struct {
	cfg     Config
	buckets *Discretizer
	ambient als.Source
	store   Store
	out     DecisionSender
	reports ReportReceiver

	logger   Logger
	observer Observer
	now      func() time.Time

	table map[Key]uint8

	lux     float64
	luxOK   bool
	current Key
	started bool

	last     uint8
	haveLast bool
	inFlight []emission
}

// NewController creates a controller with an empty preference table. Call
// Load to restore stored preferences.
func NewController(cfg Config, buckets *Discretizer, ambient als.Source, store Store, out DecisionSender, reports ReportReceiver) *Controller {
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	if ambient == nil {
		ambient = als.None{}
	}
	if store == nil {
		store = NewMemoryStore()
	}

	return &Controller{
		cfg:      cfg,
		buckets:  buckets,
		ambient:  ambient,
		store:    store,
		out:      out,
		reports:  reports,
		logger:   noopLogger{},
		observer: noopObserver{},
		now:      time.Now,
		table:    make(map[Key]uint8),
	}
}

// Load merges stored preferences into the in-memory table.
func (c *Controller) Load(ctx context.Context) error {
	loaded, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading learned preferences: %w", err)
	}
	for k, v := range loaded {
		c.table[k] = v
	}
	c.logger.Info("learned preferences loaded", "count", len(loaded))
	return nil
}

// SetLogger sets the logger.
func (c *Controller) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetObserver sets the activity observer.
func (c *Controller) SetObserver(o Observer) {
	if o != nil {
		c.observer = o
	}
}

// PushLuma runs a decision cycle with a frame-derived luma sample.
func (c *Controller) PushLuma(percent uint8) {
	if percent > 100 {
		percent = 100
	}
	c.observer.Luma(percent)
	c.cycle(percent, true)
}

// Observe runs a decision cycle from ambient light alone.
func (c *Controller) Observe() {
	c.cycle(0, false)
}

func (c *Controller) cycle(luma uint8, lumaOK bool) {
	// Reports describe what was on screen under the previous key, so they
	// are reconciled before the key moves.
	c.Reconcile()
	c.pollAmbient()

	key := c.buckets.Key(c.lux, c.luxOK, luma, lumaOK)
	c.current = key
	c.started = true

	value, learned := c.Decide(key)
	if !c.cfg.Enabled {
		return
	}
	if c.haveLast && value == c.last {
		return
	}
	c.emit(key, value, learned)
}

func (c *Controller) pollAmbient() {
	lux, err := c.ambient.Lux()
	if err != nil {
		if c.luxOK || !errors.Is(err, als.ErrUnavailable) {
			c.logger.Debug("ambient light unavailable", "error", err)
		}
		c.lux, c.luxOK = 0, false
	} else {
		c.lux, c.luxOK = lux, true
	}
	c.observer.Ambient(c.lux, c.luxOK)
}

// Decide returns the brightness for key and whether it was learned.
func (c *Controller) Decide(key Key) (uint8, bool) {
	if v, ok := c.table[key]; ok {
		return v, true
	}
	return c.buckets.Default(key), false
}

func (c *Controller) emit(key Key, value uint8, learned bool) {
	now := c.now()
	c.last = value
	c.haveLast = true
	c.inFlight = append(c.inFlight, emission{key: key, value: value, at: now})
	if n := len(c.inFlight); n > maxInFlight {
		c.inFlight = c.inFlight[n-maxInFlight:]
	}

	c.out.Offer(value)
	c.observer.Decision(key, value, learned)
	c.logger.Debug("brightness decision", "key", key.String(), "brightness", value, "learned", learned)
}

// pruneInFlight drops emissions that settled before at. Reports arrive in
// order, so no later report can be their echo either.
func (c *Controller) pruneInFlight(at time.Time) {
	kept := c.inFlight[:0]
	for _, e := range c.inFlight {
		if at.Sub(e.at) <= c.cfg.SettleWindow {
			kept = append(kept, e)
		}
	}
	c.inFlight = kept
}

// Reconcile drains pending brightness reports. Reports are judged by the time
// they were observed, so a late drain does not turn an echo into an override.
func (c *Controller) Reconcile() {
	for {
		r, ok := c.reports.Take()
		if !ok {
			return
		}
		c.handleReport(r)
	}
}

func (c *Controller) handleReport(r brightness.Report) {
	at := r.At
	if at.IsZero() {
		at = c.now()
	}
	value := r.Percent
	c.pruneInFlight(at)

	// Any decision still settling may be echoed back, not only the newest.
	for i, e := range c.inFlight {
		if e.at.After(at) {
			continue
		}
		if absDiff(e.value, value) <= c.cfg.Tolerance {
			c.inFlight = append(c.inFlight[:i], c.inFlight[i+1:]...)
			c.observer.Echo(e.key, value)
			c.logger.Debug("ignoring echo of own decision", "key", e.key.String(), "brightness", value)
			return
		}
	}

	if !c.started {
		// Nothing has been shown under any key yet; attribute to the
		// ambient-only key of the present conditions.
		c.pollAmbient()
		c.current = c.buckets.Key(c.lux, c.luxOK, 0, false)
		c.started = true
	}
	c.learn(c.current, value)
}

func (c *Controller) learn(key Key, value uint8) {
	if value > 100 {
		value = 100
	}
	var previous *uint8
	if old, ok := c.table[key]; ok {
		previous = &old
	}
	c.table[key] = value
	c.last = value
	c.haveLast = true
	c.inFlight = c.inFlight[:0]

	c.observer.Override(key, value, previous)
	c.logger.Info("learned brightness preference", "key", key.String(), "brightness", value)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Set(ctx, key, value); err != nil {
		c.logger.Warn("preference kept in memory only",
			"key", key.String(),
			"error", fmt.Errorf("%w: %w", ErrPersist, err))
	}
}

// Preference returns the learned value for key.
func (c *Controller) Preference(key Key) (uint8, bool) {
	v, ok := c.table[key]
	return v, ok
}

// Preferences returns a copy of the learned table.
func (c *Controller) Preferences() map[Key]uint8 {
	out := make(map[Key]uint8, len(c.table))
	for k, v := range c.table {
		out[k] = v
	}
	return out
}

// LastDecision returns the last brightness emitted or learned.
func (c *Controller) LastDecision() (uint8, bool) {
	return c.last, c.haveLast
}

// CurrentKey returns the key of the latest decision cycle.
func (c *Controller) CurrentKey() Key {
	return c.current
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
