package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lumen/internal/predictor"
)

type fakeSeries struct {
	decisions, overrides, ambient, luma int
	lastPrevious                       *uint8
}

func (f *fakeSeries) WriteDecision(string, uint8, bool) { f.decisions++ }
func (f *fakeSeries) WriteAmbient(float64)              { f.ambient++ }
func (f *fakeSeries) WriteLuma(uint8)                   { f.luma++ }

func (f *fakeSeries) WriteOverride(_ string, _ uint8, previous *uint8) {
	f.overrides++
	f.lastPrevious = previous
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic, data, retained})
	return p.err
}

func (p *fakePublisher) byTopic(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

var testTopics = Topics{State: "lumen/state/brightness", Override: "lumen/event/override"}

func TestRecorder_Snapshot(t *testing.T) {
	r := NewRecorder(Options{})
	key := predictor.Key{Lux: "dim", Luma: 2}

	if s := r.Snapshot(); s.Brightness != nil || s.Lux != nil {
		t.Fatalf("initial snapshot = %+v", s)
	}

	r.Luma(60)
	r.Ambient(42, true)
	r.Decision(key, 35, false)
	r.Echo(key, 35)
	r.Override(key, 50, nil)

	s := r.Snapshot()
	if s.Brightness == nil || *s.Brightness != 50 || !s.Learned || s.Key != "dim/2" {
		t.Errorf("snapshot brightness/key = %+v", s)
	}
	if s.Lux == nil || *s.Lux != 42 || s.Luma == nil || *s.Luma != 60 {
		t.Errorf("snapshot signals = %+v", s)
	}
	if s.Decisions != 1 || s.Echoes != 1 || s.Overrides != 1 {
		t.Errorf("counters = %d/%d/%d", s.Decisions, s.Echoes, s.Overrides)
	}

	r.Ambient(0, false)
	if r.Snapshot().Lux != nil {
		t.Error("lux should clear when ambient is unavailable")
	}
}

func TestRecorder_SeriesThrottlesSamples(t *testing.T) {
	series := &fakeSeries{}
	r := NewRecorder(Options{Series: series, SampleInterval: 10 * time.Second})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		r.Luma(50)
		r.Ambient(100, true)
		now = now.Add(time.Second)
	}
	if series.luma != 1 || series.ambient != 1 {
		t.Errorf("within interval: luma = %d, ambient = %d; want 1, 1", series.luma, series.ambient)
	}

	now = now.Add(10 * time.Second)
	r.Luma(50)
	r.Ambient(0, false)
	if series.luma != 2 || series.ambient != 1 {
		t.Errorf("after interval: luma = %d, ambient = %d; want 2, 1", series.luma, series.ambient)
	}

	prev := uint8(20)
	r.Decision(predictor.Key{Lux: "dim", Luma: 1}, 30, true)
	r.Override(predictor.Key{Lux: "dim", Luma: 1}, 45, &prev)
	if series.decisions != 1 || series.overrides != 1 || series.lastPrevious == nil || *series.lastPrevious != 20 {
		t.Errorf("series = %+v", series)
	}
}

func TestRecorder_RunPublishes(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRecorder(Options{Publisher: pub, Topics: testTopics})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	key := predictor.Key{Lux: "normal", Luma: 3}
	r.Decision(key, 40, false)
	r.Override(key, 55, nil)

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.byTopic(testTopics.Override)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	events := pub.byTopic(testTopics.Override)
	if len(events) != 1 || events[0].retained {
		t.Fatalf("override events = %+v", events)
	}
	var ev OverrideEvent
	if err := json.Unmarshal(events[0].payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Key != "normal/3" || ev.Brightness != 55 || ev.Previous != nil {
		t.Errorf("override event = %+v", ev)
	}

	states := pub.byTopic(testTopics.State)
	if len(states) == 0 || !states[len(states)-1].retained {
		t.Fatalf("state messages = %+v", states)
	}
}

func TestRecorder_PublishFailureDoesNotStop(t *testing.T) {
	pub := &fakePublisher{err: errors.New("mqtt: client not connected")}
	r := NewRecorder(Options{Publisher: pub, Topics: testTopics})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Decision(predictor.Key{Lux: "dim", Luma: 0}, 10, false)
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.byTopic(testTopics.State)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Decision(predictor.Key{Lux: "dim", Luma: 1}, 20, false)
	for len(pub.byTopic(testTopics.State)) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if n := len(pub.byTopic(testTopics.State)); n != 2 {
		t.Errorf("state publishes = %d, want 2", n)
	}
}

func TestRecorder_OverrideQueueDropsWhenFull(t *testing.T) {
	r := NewRecorder(Options{Publisher: &fakePublisher{}, Topics: testTopics})

	for i := 0; i < overrideQueueSize+3; i++ {
		r.Override(predictor.Key{Lux: "dim", Luma: 1}, uint8(i), nil)
	}
	// 3 overflowing events plus all but the last state offer.
	if got, want := r.Dropped(), uint64(3+overrideQueueSize+2); got != want {
		t.Errorf("Dropped() = %d, want %d", got, want)
	}
}

func TestRecorder_RunWithoutPublisherReturns(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewRecorder(Options{}).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() without publisher should return immediately")
	}
}
