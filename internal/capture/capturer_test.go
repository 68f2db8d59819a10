package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	observes   atomic.Int32
	reconciles atomic.Int32
}

func (s *countingSink) PushLuma(uint8) {}
func (s *countingSink) Observe()       { s.observes.Add(1) }
func (s *countingSink) Reconcile()     { s.reconciles.Add(1) }

func TestDisabled_BlocksWithoutInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &countingSink{}
	done := make(chan error, 1)

	go func() { done <- NewDisabled(0, nil).Run(ctx, sink) }()

	select {
	case <-done:
		t.Fatal("Run returned before cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if n := sink.observes.Load(); n != 0 {
		t.Errorf("Observe called %d times, want 0", n)
	}
}

func TestDisabled_ObservesOnInterval(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sink := &countingSink{}

	if err := NewDisabled(10*time.Millisecond, nil).Run(ctx, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := sink.observes.Load(); n < 2 {
		t.Errorf("Observe called %d times, want at least 2", n)
	}
}

func TestDisabled_ReconcilesWithoutInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &countingSink{}
	reports := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() { done <- NewDisabled(0, reports).Run(ctx, sink) }()

	reports <- struct{}{}
	deadline := time.Now().Add(time.Second)
	for sink.reconciles.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Reconcile not called after a report signal")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if n := sink.observes.Load(); n != 0 {
		t.Errorf("Observe called %d times, want 0 without an interval", n)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "x11"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New() error = %v, want ErrUnknownBackend", err)
	}
}

func TestNew_NoneBackend(t *testing.T) {
	c, err := New(Options{Backend: BackendNone, IdleInterval: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.(*Disabled); !ok {
		t.Errorf("New() = %T, want *Disabled", c)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCancelReason(t *testing.T) {
	if !CancelPermanent.Permanent() || CancelTemporary.Permanent() || CancelResizing.Permanent() {
		t.Error("only CancelPermanent is permanent")
	}
	if CancelReason(7).String() != "reason(7)" {
		t.Errorf("String() = %q", CancelReason(7).String())
	}
}
