// Package circuitbreaker stops the inspector from calling a Convert API
// scope that keeps failing. Each key (an account/project pair) moves
// closed → open → half-open independently.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/campaigntrip/convertapi/internal/metrics"
)

// ErrOpen is returned by Do while a key's circuit is open.
var ErrOpen = errors.New("circuitbreaker: upstream unavailable")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // calls flow through
	StateOpen                  // calls are rejected
	StateHalfOpen              // one probe call is allowed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type entry struct {
	state    State
	failures int
	openedAt time.Time
}

// Breaker is a per-key circuit breaker.
type Breaker struct {
	threshold    int
	openDuration time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a breaker that opens after threshold consecutive failures and
// probes again after openDuration. now defaults to time.Now.
func New(threshold int, openDuration time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openDuration <= 0 {
		openDuration = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		threshold:    threshold,
		openDuration: openDuration,
		now:          now,
		entries:      make(map[string]*entry),
	}
}

// Do runs fn unless key's circuit is open, then records the outcome.
// Failures that say nothing about upstream health can be excluded with
// counts; a nil counts treats every error as a failure.
func (b *Breaker) Do(key string, fn func() error, counts func(error) bool) error {
	if !b.Allow(key) {
		return ErrOpen
	}
	err := fn()
	if err != nil && (counts == nil || counts(err)) {
		b.RecordFailure(key)
	} else {
		b.RecordSuccess(key)
	}
	return err
}

// Allow reports whether a call for key may proceed. An open circuit whose
// open period has elapsed moves to half-open and lets one probe through.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return true
	}

	switch e.state {
	case StateOpen:
		if b.now().Sub(e.openedAt) >= b.openDuration {
			b.transition(e, StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess resets key's failure count and closes a half-open circuit.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return
	}
	if e.state == StateHalfOpen {
		b.transition(e, StateClosed)
	}
	e.failures = 0
}

// RecordFailure counts a failure for key, opening the circuit at the
// threshold or when a half-open probe fails.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[key] = e
	}
	e.failures++

	switch {
	case e.state == StateHalfOpen:
		b.open(e)
	case e.state == StateClosed && e.failures >= b.threshold:
		b.open(e)
	}
}

// State returns key's state; unknown keys are closed.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[key]; ok {
		return e.state
	}
	return StateClosed
}

// Caller holds b.mu.
func (b *Breaker) open(e *entry) {
	e.openedAt = b.now()
	b.transition(e, StateOpen)
}

// Caller holds b.mu.
func (b *Breaker) transition(e *entry, to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	metrics.BreakerTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
}
