package intake

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Sessions holds server-side wizards keyed by an opaque id. Entries expire
// after ttl without a lookup.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]*sessionEntry
	onResize func(int)
}

type sessionEntry struct {
	wizard  *wizard.Wizard
	touched time.Time
}

// NewSessions returns an empty registry.
func NewSessions(ttl time.Duration, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*sessionEntry),
	}
}

// Add stores w and returns its id.
func (s *Sessions) Add(w *wizard.Wizard) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &sessionEntry{wizard: w, touched: s.now()}
	n := len(s.entries)
	s.mu.Unlock()
	s.resized(n)
	return id
}

// Get returns the wizard for id and refreshes its expiry. Expired entries are
// dropped and reported as missing unless a submission is in flight.
func (s *Sessions) Get(id string) (*wizard.Wizard, bool) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.expired(entry, now) && !entry.wizard.IsSubmitting() {
		entry.wizard.Cancel()
		delete(s.entries, id)
		n := len(s.entries)
		s.mu.Unlock()
		s.resized(n)
		return nil, false
	}
	entry.touched = now
	s.mu.Unlock()
	return entry.wizard, true
}

// Remove drops id and returns the wizard it held.
func (s *Sessions) Remove(id string) (*wizard.Wizard, bool) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	n := len(s.entries)
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.resized(n)
	return entry.wizard, true
}

// Sweep discards expired sessions and returns how many were removed.
// Sessions with a submission in flight are kept until it settles.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !s.expired(entry, now) || entry.wizard.IsSubmitting() {
			continue
		}
		entry.wizard.Cancel()
		delete(s.entries, id)
		removed++
	}
	n := len(s.entries)
	s.mu.Unlock()
	if removed > 0 {
		s.resized(n)
	}
	return removed
}

// Len returns the number of held sessions, expired or not.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) expired(entry *sessionEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.touched) > s.ttl
}

func (s *Sessions) resized(n int) {
	if s.onResize != nil {
		s.onResize(n)
	}
}
