package fetch

import (
	"sync"
	"time"

	"tariff-engine/internal/errors"
)

// State captures circuit breaker states.
type State int

const (
	// StateClosed indicates normal operation.
	StateClosed State = iota
	// StateOpen indicates the breaker is rejecting calls.
	StateOpen
	// StateHalfOpen indicates a single trial call is permitted.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type breaker struct {
	consecutiveFailures int
	state               State
	openedAt            time.Time
	trialInFlight       bool
}

// BreakerSet holds one circuit breaker per endpoint identifier. Breakers are
// created on first use and persist for the life of the set.
type BreakerSet struct {
	mu        sync.Mutex
	breakers  map[string]*breaker
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreakerSet creates a breaker set that opens a circuit after threshold
// consecutive failures and keeps it open for cooldown.
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	if threshold < 1 {
		threshold = 1
	}
	return &BreakerSet{
		breakers:  make(map[string]*breaker),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (s *BreakerSet) get(id string) *breaker {
	b, ok := s.breakers[id]
	if !ok {
		b = &breaker{state: StateClosed}
		s.breakers[id] = b
	}
	return b
}

// Allow reports whether a call to the endpoint may proceed. An open circuit
// rejects immediately with a CIRCUIT_OPEN error until the cooldown elapses,
// at which point exactly one trial call is admitted (half-open).
func (s *BreakerSet) Allow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(id)
	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if s.now().Sub(b.openedAt) < s.cooldown {
			return errors.CircuitOpen(id)
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return nil
	default: // half-open
		if b.trialInFlight {
			return errors.CircuitOpen(id)
		}
		b.trialInFlight = true
		return nil
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (s *BreakerSet) RecordSuccess(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(id)
	b.consecutiveFailures = 0
	b.state = StateClosed
	b.trialInFlight = false
}

// RecordFailure counts one endpoint failure; a half-open trial failure or
// reaching the threshold opens the circuit and resets the cooldown clock.
func (s *BreakerSet) RecordFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(id)
	b.consecutiveFailures++
	if b.state == StateHalfOpen || b.consecutiveFailures >= s.threshold {
		b.state = StateOpen
		b.openedAt = s.now()
		b.trialInFlight = false
	}
}

// ReleaseTrial abandons an unresolved half-open trial, returning the breaker
// to open without touching the cooldown clock, so the slot is not held by a
// call that never answered. Caller cancellation is not an upstream failure,
// so the failure count stays untouched too. No-op outside half-open.
func (s *BreakerSet) ReleaseTrial(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(id)
	if b.state != StateHalfOpen {
		return
	}
	b.state = StateOpen
	b.trialInFlight = false
}

// StateOf returns the current state for an endpoint identifier.
func (s *BreakerSet) StateOf(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id).state
}
