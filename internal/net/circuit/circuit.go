// Package circuit wraps github.com/sony/gobreaker with a per-venue registry,
// adapted from the teacher's infra/breakers/breakers.go (a single-breaker
// helper) into a lazily-filled per-venue Manager, so C5/C8 can request "the
// breaker for binance" by venue name.
package circuit

import (
	"sync"
	"time"

	cb "github.com/sony/gobreaker"
)

// ErrOpen is returned by Execute when the breaker is open; callers compare
// against it with errors.Is instead of importing gobreaker directly.
var ErrOpen = cb.ErrOpenState

// Breaker wraps one gobreaker.CircuitBreaker.
type Breaker struct{ cb *cb.CircuitBreaker }

// New creates a breaker that trips after 3 consecutive failures, or after
// a 5% failure rate once at least 20 requests have been observed in the
// rolling interval — the same thresholds the teacher used for its provider
// breakers.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker's current gobreaker state name (closed,
// half-open, open).
func (b *Breaker) State() string { return b.cb.State().String() }

// Manager holds one Breaker per venue, created lazily on first use.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewManager() *Manager { return &Manager{breakers: make(map[string]*Breaker)} }

func (m *Manager) For(venue string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[venue]
	m.mu.RUnlock()
	if ok {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[venue]; ok {
		return b
	}
	b = New(venue)
	m.breakers[venue] = b
	return b
}

// States returns the current state of every breaker created so far, keyed
// by venue.
func (m *Manager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.breakers))
	for v, b := range m.breakers {
		out[v] = b.State()
	}
	return out
}
