package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/lumen/internal/frame"
)

// Backend names accepted by New.
const (
	BackendWlroots = "wlroots"
	BackendNone    = "none"
)

// Capturer produces luma samples for a Sink until ctx is cancelled or a fatal
// error occurs.
type Capturer interface {
	Run(ctx context.Context, sink Sink) error
	Close() error
}

// Options configures New. Reports is signalled when brightness reports are
// pending; only the none backend selects on it.
type Options struct {
	Backend      string
	Wlroots      WlrootsConfig
	Session      SessionConfig
	IdleInterval time.Duration
	Reports      <-chan struct{}
	Processor    frame.Processor
	Logger       Logger
	Metrics      Metrics
}

// New builds the capturer for opts.Backend.
func New(opts Options) (Capturer, error) {
	switch opts.Backend {
	case BackendWlroots:
		proto, err := DialWlroots(opts.Wlroots)
		if err != nil {
			return nil, err
		}
		return &Wlroots{
			proto:     proto,
			processor: opts.Processor,
			cfg:       opts.Session,
			logger:    opts.Logger,
			metrics:   opts.Metrics,
		}, nil
	case BackendNone, "":
		return NewDisabled(opts.IdleInterval, opts.Reports), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Wlroots captures frames with the export-dmabuf protocol.
type Wlroots struct {
	proto     *WlrootsProtocol
	processor frame.Processor
	cfg       SessionConfig
	logger    Logger
	metrics   Metrics
}

// OutputName returns the name of the captured output.
func (w *Wlroots) OutputName() string {
	return w.proto.OutputName()
}

// Run implements Capturer. Cancelling ctx closes the connection so a blocked
// dispatch returns.
func (w *Wlroots) Run(ctx context.Context, sink Sink) error {
	stop := context.AfterFunc(ctx, w.proto.interrupt)
	defer stop()

	s := NewSession(w.proto, w.processor, sink, w.cfg)
	s.SetLogger(w.logger)
	s.SetMetrics(w.metrics)
	return s.Run(ctx)
}

// Close implements Capturer.
func (w *Wlroots) Close() error {
	return w.proto.Close()
}

// Disabled is the capturer used when screen capture is turned off.
type Disabled struct {
	interval time.Duration
	reports  <-chan struct{}
}

// NewDisabled returns a capturer that calls Sink.Observe every interval and
// Sink.Reconcile whenever reports signals. A zero interval disables the
// periodic cycle; a nil reports channel is never selected.
func NewDisabled(interval time.Duration, reports <-chan struct{}) *Disabled {
	return &Disabled{interval: interval, reports: reports}
}

// Run implements Capturer.
func (d *Disabled) Run(ctx context.Context, sink Sink) error {
	var tick <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			sink.Observe()
		case <-d.reports:
			sink.Reconcile()
		}
	}
}

// Close implements Capturer.
func (d *Disabled) Close() error {
	return nil
}
