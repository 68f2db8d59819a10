// Package mailbox provides a single-slot, latest-wins hand-off between
// goroutines.
//
// Offer never blocks: a value that was not taken before the next Offer is
// overwritten and counted as dropped. The receiving side selects on Ready and
// then calls Take, so a mailbox composes with other channels, timers and
// context cancellation in one select statement.
package mailbox

import (
	"sync"
	"sync/atomic"
)

// Mailbox holds at most one pending value of type T.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	ready   chan struct{}
	drops   atomic.Uint64
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Offer stores v, replacing any value that has not been taken yet.
func (m *Mailbox[T]) Offer(v T) {
	m.mu.Lock()
	if m.pending {
		m.drops.Add(1)
	}
	m.value = v
	m.pending = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after an Offer. A signal may be stale: always check the
// second result of Take.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Take removes and returns the pending value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.pending {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.pending = false
	return v, true
}

// Drops returns how many values were overwritten before being taken.
func (m *Mailbox[T]) Drops() uint64 {
	return m.drops.Load()
}
