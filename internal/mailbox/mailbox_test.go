package mailbox

import (
	"sync"
	"testing"
	"time"
)

func TestMailbox_LatestWins(t *testing.T) {
	m := New[int]()

	m.Offer(1)
	m.Offer(2)
	m.Offer(3)

	v, ok := m.Take()
	if !ok || v != 3 {
		t.Fatalf("Take() = %d, %v; want 3, true", v, ok)
	}
	if _, ok := m.Take(); ok {
		t.Error("second Take() returned a value")
	}
	if got := m.Drops(); got != 2 {
		t.Errorf("Drops() = %d, want 2", got)
	}
}

func TestMailbox_ReadySignalsOffer(t *testing.T) {
	m := New[string]()

	select {
	case <-m.Ready():
		t.Fatal("Ready fired on empty mailbox")
	default:
	}

	m.Offer("a")
	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("Ready not signalled after Offer")
	}
	if v, ok := m.Take(); !ok || v != "a" {
		t.Errorf("Take() = %q, %v", v, ok)
	}
}

func TestMailbox_OfferNeverBlocks(t *testing.T) {
	m := New[int]()
	done := make(chan struct{})

	go func() {
		for i := 0; i < 10000; i++ {
			m.Offer(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Offer blocked without a receiver")
	}
	if v, ok := m.Take(); !ok || v != 9999 {
		t.Errorf("Take() = %d, %v; want 9999, true", v, ok)
	}
}

func TestMailbox_ConcurrentConsumer(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	last := -1

	wg.Add(1)
	go func() {
		defer wg.Done()
		for last != 499 {
			<-m.Ready()
			if v, ok := m.Take(); ok {
				if v <= last {
					t.Errorf("received %d after %d", v, last)
				}
				last = v
			}
		}
	}()

	for i := 0; i < 500; i++ {
		m.Offer(i)
	}
	wg.Wait()
}
