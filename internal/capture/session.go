package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lumen/internal/frame"
)

// Default delays between capture attempts.
const (
	DefaultSuccessDelay = 100 * time.Millisecond
	DefaultFailureDelay = time.Second
)

// Capture outcomes reported to Metrics.
const (
	OutcomeFrame           = "frame"
	OutcomeCancelTransient = "cancel_transient"
	OutcomeCancelPermanent = "cancel_permanent"
	OutcomeViolation       = "violation"
	OutcomeProcessingError = "processing_error"
	OutcomeError           = "error"
)

// State is the position of a capture attempt in its lifecycle.
type State int

// Capture attempt states.
const (
	StateIdle State = iota
	StateAwaitingMetadata
	StateAwaitingObjects
	StateReady
	StateCancelledTransient
	StateCancelledPermanent
	StateViolated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMetadata:
		return "awaiting_metadata"
	case StateAwaitingObjects:
		return "awaiting_objects"
	case StateReady:
		return "ready"
	case StateCancelledTransient:
		return "cancelled_transient"
	case StateCancelledPermanent:
		return "cancelled_permanent"
	case StateViolated:
		return "violated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events are expected for the attempt.
func (s State) Terminal() bool {
	return s >= StateReady
}

// Sink receives the output of the capture loop.
type Sink interface {
	// PushLuma delivers the luma of a captured frame and runs one decision cycle.
	PushLuma(percent uint8)

	// Observe runs a decision cycle without a luma sample.
	Observe()

	// Reconcile learns from pending brightness reports without deciding.
	Reconcile()
}

// Metrics records capture outcomes.
type Metrics interface {
	CaptureOutcome(outcome string)
}

// Logger is the logging interface used by the capture package.
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

func (noopMetrics) CaptureOutcome(string) {}

// SessionConfig holds the retry delays of a Session.
type SessionConfig struct {
	SuccessDelay time.Duration
	FailureDelay time.Duration
}

// sessionStats counts what a Session has done so far.
type sessionStats struct {
	Attempts         uint64
	Frames           uint64
	TransientCancels uint64
}

// Session runs the capture state machine over a Protocol.
//
// A Session is not safe for concurrent use: Run owns it for its lifetime.
type Session struct {
	proto     Protocol
	processor frame.Processor
	sink      Sink
	cfg       SessionConfig

	logger   Logger
	metrics  Metrics
	wait     func(ctx context.Context, d time.Duration) error
	newFrame func() *frame.Frame

	stats sessionStats
}

// NewSession creates a session. Zero delays select the defaults.
func NewSession(proto Protocol, processor frame.Processor, sink Sink, cfg SessionConfig) *Session {
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = DefaultSuccessDelay
	}
	if cfg.FailureDelay <= 0 {
		cfg.FailureDelay = DefaultFailureDelay
	}
	return &Session{
		proto:     proto,
		processor: processor,
		sink:      sink,
		cfg:       cfg,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		wait:      sleepContext,
		newFrame:  frame.New,
	}
}

// SetLogger sets the logger.
func (s *Session) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetMetrics sets the outcome recorder.
func (s *Session) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Run captures frames until ctx is cancelled or a fatal error occurs.
// Cancellation returns nil. Permanent cancellation, processing failures,
// protocol violations and transport errors are returned.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.logger.Info("capture session ended",
			"attempts", s.stats.Attempts,
			"frames", s.stats.Frames,
			"transient_cancels", s.stats.TransientCancels)
	}()

	for {
		delay, err := s.captureOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.wait(ctx, delay); err != nil {
			return nil
		}
	}
}

// captureOnce performs one attempt and returns how long to wait before the next.
func (s *Session) captureOnce(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.stats.Attempts++
	a := &attempt{frame: s.newFrame(), state: StateIdle}

	handle, err := s.proto.Capture(a.handle)
	if err != nil {
		s.releaseFrame(a)
		s.metrics.CaptureOutcome(OutcomeError)
		return 0, fmt.Errorf("requesting frame: %w", err)
	}
	a.state = StateAwaitingMetadata

	for !a.state.Terminal() {
		if err := s.proto.Dispatch(); err != nil {
			s.release(a, handle)
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			s.metrics.CaptureOutcome(OutcomeError)
			return 0, fmt.Errorf("dispatching capture events: %w", err)
		}
	}

	switch a.state {
	case StateReady:
		luma, err := s.processor.LumaPercent(a.frame)
		s.release(a, handle)
		if err != nil {
			s.metrics.CaptureOutcome(OutcomeProcessingError)
			if !errors.Is(err, frame.ErrProcessing) {
				err = fmt.Errorf("%w: %w", frame.ErrProcessing, err)
			}
			return 0, err
		}
		s.stats.Frames++
		s.metrics.CaptureOutcome(OutcomeFrame)
		s.sink.PushLuma(luma)
		return s.cfg.SuccessDelay, nil

	case StateCancelledTransient:
		s.release(a, handle)
		s.stats.TransientCancels++
		s.metrics.CaptureOutcome(OutcomeCancelTransient)
		s.logger.Warn("frame capture cancelled, retrying",
			"error", fmt.Errorf("%w: %s", ErrTransientCancel, a.reason),
			"retry_in", s.cfg.FailureDelay)
		return s.cfg.FailureDelay, nil

	case StateCancelledPermanent:
		s.release(a, handle)
		s.metrics.CaptureOutcome(OutcomeCancelPermanent)
		return 0, fmt.Errorf("%w: %s", ErrPermanentCancel, a.reason)

	default:
		s.release(a, handle)
		s.metrics.CaptureOutcome(OutcomeViolation)
		return 0, a.err
	}
}

func (s *Session) release(a *attempt, handle Attempt) {
	s.releaseFrame(a)
	if err := handle.Release(); err != nil {
		s.logger.Warn("releasing capture attempt", "error", err)
	}
}

func (s *Session) releaseFrame(a *attempt) {
	if err := a.frame.Release(); err != nil {
		s.logger.Warn("releasing frame descriptors", "error", err)
	}
	for _, err := range a.closeErrs {
		s.logger.Warn("closing superseded descriptor", "error", err)
	}
	a.closeErrs = nil
}

// attempt is the per-request state mutated by protocol callbacks. The handler
// only records; all follow-up work happens in captureOnce.
type attempt struct {
	frame     *frame.Frame
	state     State
	reason    CancelReason
	err       error
	closeErrs []error
}

func (a *attempt) handle(ev Event) {
	if a.state.Terminal() {
		// Descriptors still have to be owned so they are closed on release.
		if obj, ok := ev.(ObjectEvent); ok {
			a.addRegion(obj)
		}
		if a.state != StateViolated {
			a.violate(fmt.Errorf("%w: %T after %s", ErrProtocolViolation, ev, a.state))
		}
		return
	}

	switch e := ev.(type) {
	case MetadataEvent:
		a.frame.SetMetadata(e.Width, e.Height, e.Format, e.Modifier, e.Objects)
		a.state = StateAwaitingObjects

	case ObjectEvent:
		if e.Handle < 0 {
			a.violate(fmt.Errorf("%w: object %d without descriptor", ErrProtocolViolation, e.Index))
			return
		}
		a.addRegion(e)

	case ReadyEvent:
		if !a.frame.Complete() {
			a.violate(fmt.Errorf("%w: %w: %s", ErrProtocolViolation, ErrIncompleteFrame, a.frame))
			return
		}
		a.state = StateReady

	case CancelEvent:
		a.reason = e.Reason
		if e.Reason.Permanent() {
			a.state = StateCancelledPermanent
		} else {
			a.state = StateCancelledTransient
		}

	case UnknownEvent:
		if e.Handle >= 0 {
			a.addRegion(ObjectEvent{Index: ^uint32(0), Handle: e.Handle})
		}
		a.violate(fmt.Errorf("%w: unexpected opcode %d: %s", ErrProtocolViolation, e.Opcode, e.Reason))

	default:
		a.violate(fmt.Errorf("%w: unexpected event %T", ErrProtocolViolation, ev))
	}
}

func (a *attempt) addRegion(e ObjectEvent) {
	err := a.frame.AddRegion(frame.Region{
		Index:      e.Index,
		Handle:     e.Handle,
		Size:       e.Size,
		Offset:     e.Offset,
		Stride:     e.Stride,
		PlaneIndex: e.PlaneIndex,
	})
	if err != nil {
		a.closeErrs = append(a.closeErrs, err)
	}
}

func (a *attempt) violate(err error) {
	a.state = StateViolated
	a.err = err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
