package brightness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lumen/internal/mailbox"
)

// fakeDevice is a Device whose value can be changed behind the controller's back.
type fakeDevice struct {
	mu       sync.Mutex
	max      uint64
	raw      uint64
	writes   []uint64
	writeErr error
	readErr  error
}

func (d *fakeDevice) Max() uint64 { return d.max }

func (d *fakeDevice) Read() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw, d.readErr
}

func (d *fakeDevice) Write(raw uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.writes = append(d.writes, raw)
	d.raw = raw
	return nil
}

func (d *fakeDevice) set(raw uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = raw
}

func (d *fakeDevice) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type runningController struct {
	dev       *fakeDevice
	decisions *mailbox.Mailbox[uint8]
	reports   *mailbox.Mailbox[Report]
	ctrl      *Controller
	cancel    context.CancelFunc
	done      chan error
}

func startController(t *testing.T, dev *fakeDevice, cfg Config) *runningController {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &runningController{
		dev:       dev,
		decisions: mailbox.New[uint8](),
		reports:   mailbox.New[Report](),
		cancel:    cancel,
		done:      make(chan error, 1),
	}
	r.ctrl = NewController(dev, r.decisions, r.reports, cfg)
	go func() { r.done <- r.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.done
	})
	return r
}

func TestController_AppliesDecisions(t *testing.T) {
	dev := &fakeDevice{max: 255, raw: 0}
	r := startController(t, dev, Config{PollInterval: 10 * time.Millisecond})

	r.decisions.Offer(50)
	waitFor(t, "write", func() bool { return dev.writeCount() == 1 })

	if got, _ := dev.Read(); got != 128 {
		t.Errorf("device raw = %d, want 128", got)
	}

	// Give the poll loop a few ticks; our own write must not be reported.
	time.Sleep(50 * time.Millisecond)
	if v, ok := r.reports.Take(); ok {
		t.Errorf("own write reported as %d", v.Percent)
	}
}

func TestController_SkipsUnchangedDecision(t *testing.T) {
	dev := &fakeDevice{max: 100, raw: 40}
	r := startController(t, dev, Config{PollInterval: 10 * time.Millisecond})

	r.decisions.Offer(40)
	time.Sleep(50 * time.Millisecond)
	if n := dev.writeCount(); n != 0 {
		t.Errorf("writes = %d, want 0 for unchanged value", n)
	}
}

func TestController_ReportsExternalChange(t *testing.T) {
	dev := &fakeDevice{max: 1000, raw: 500}
	r := startController(t, dev, Config{PollInterval: 10 * time.Millisecond})

	dev.set(350)

	var got uint8
	waitFor(t, "report", func() bool {
		v, ok := r.reports.Take()
		got = v.Percent
		return ok
	})
	if got != 35 {
		t.Errorf("report = %d, want 35", got)
	}

	// Reported once, not on every poll.
	time.Sleep(50 * time.Millisecond)
	if v, ok := r.reports.Take(); ok {
		t.Errorf("duplicate report %d", v.Percent)
	}
}

func TestController_IgnoresRampTowardsOwnWrite(t *testing.T) {
	dev := &fakeDevice{max: 100, raw: 10}
	c := NewController(dev, mailbox.New[uint8](), mailbox.New[Report](), Config{SettleWindow: time.Second})
	reports := c.reports.(*mailbox.Mailbox[Report])
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.current = 10

	if err := c.apply(80); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	// Hardware still fading in.
	dev.set(45)
	c.observe()
	if v, ok := reports.Take(); ok {
		t.Fatalf("intermediate value reported as %d", v.Percent)
	}

	// Outside the ramp range: the user moved it.
	dev.set(5)
	c.observe()
	if v, ok := reports.Take(); !ok || v.Percent != 5 || !v.At.Equal(now) {
		t.Errorf("report = %+v, %v; want 5 observed at %v", v, ok, now)
	}

	// Inside the old range but after the window: reported too.
	if err := c.apply(60); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Second)
	dev.set(30)
	c.observe()
	if v, ok := reports.Take(); !ok || v.Percent != 30 {
		t.Errorf("report = %d, %v; want 30", v.Percent, ok)
	}
}

func TestController_GivesUpAfterRepeatedWriteFailures(t *testing.T) {
	dev := &fakeDevice{max: 100, raw: 10, writeErr: errors.New("permission denied")}
	c := NewController(dev, mailbox.New[uint8](), mailbox.New[Report](), Config{})
	c.current = 10

	for i := 1; i < maxConsecutiveFailures; i++ {
		if err := c.apply(uint8(20 + i)); err != nil {
			t.Fatalf("apply() failure %d returned error early: %v", i, err)
		}
	}
	if err := c.apply(99); err == nil {
		t.Fatal("apply() should give up after repeated failures")
	}
}

func TestController_RunFailsWithoutDevice(t *testing.T) {
	dev := &fakeDevice{max: 100, readErr: errors.New("no such file")}
	c := NewController(dev, mailbox.New[uint8](), mailbox.New[Report](), Config{})

	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the device cannot be read")
	}
}

func TestController_WatchEventTriggersRead(t *testing.T) {
	dir := fakeSysfs(t, "100", "20")
	bl, err := OpenBacklight(dir)
	if err != nil {
		t.Fatalf("OpenBacklight() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reports := mailbox.New[Report]()
	// Long poll interval: only the watcher can notice the change in time.
	c := NewController(bl, mailbox.New[uint8](), reports, Config{PollInterval: time.Hour, WatchPaths: bl.WatchPaths()})
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if err := bl.Write(70); err != nil {
		t.Fatal(err)
	}
	if err := writeAttr(dir, attrActualBrightness, "70"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "watch report", func() bool {
		v, ok := reports.Take()
		return ok && v.Percent == 70
	})
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
