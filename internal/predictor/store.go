package predictor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists learned preferences, at most one per key.
type Store interface {
	Get(ctx context.Context, key Key) (uint8, bool, error)
	Set(ctx context.Context, key Key, brightness uint8) error
	Load(ctx context.Context) (map[Key]uint8, error)
}

// Preference is a stored entry with its last update time.
type Preference struct {
	Key        Key       `json:"-"`
	Brightness uint8     `json:"brightness"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MemoryStore keeps preferences in memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Preference
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]Preference), now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key Key) (uint8, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[key]
	return p.Brightness, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key Key, brightness uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Preference{Key: key, Brightness: brightness, UpdatedAt: s.now().UTC()}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context) (map[Key]uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]uint8, len(s.entries))
	for k, p := range s.entries {
		out[k] = p.Brightness
	}
	return out, nil
}

// List returns every entry ordered by key.
func (s *MemoryStore) List(_ context.Context) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preference, 0, len(s.entries))
	for _, p := range s.entries {
		out = append(out, p)
	}
	sortPreferences(out)
	return out, nil
}

func sortPreferences(ps []Preference) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Key.Lux != ps[j].Key.Lux {
			return ps[i].Key.Lux < ps[j].Key.Lux
		}
		return ps[i].Key.Luma < ps[j].Key.Luma
	})
}
