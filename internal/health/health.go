// Package health runs the named checks behind the inspector's health
// endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// Status is the outcome of one check.
type Status struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Checker reports a problem as a non-nil error.
type Checker func(ctx context.Context) error

// Registry holds named checks and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
	timeout  time.Duration
}

type namedChecker struct {
	name     string
	optional bool
	check    Checker
}

// NewRegistry creates a registry whose checks each get timeout to finish.
// A zero timeout uses DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{timeout: timeout}
}

// Register adds a check that must pass for the registry to be healthy.
func (r *Registry) Register(name string, check Checker) {
	r.add(namedChecker{name: name, check: check})
}

// RegisterOptional adds a check that is reported but does not affect the
// aggregate result.
func (r *Registry) RegisterOptional(name string, check Checker) {
	r.add(namedChecker{name: name, optional: true, check: check})
}

func (r *Registry) add(nc namedChecker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, nc)
	r.mu.Unlock()
}

// CheckAll runs every check concurrently and returns the aggregate health
// plus individual results in registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	statuses = make([]Status, len(checkers))

	var wg sync.WaitGroup
	for i, nc := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			st := Status{Name: nc.name, Optional: nc.optional, Healthy: true}
			if err := nc.check(cctx); err != nil {
				st.Healthy = false
				st.Detail = err.Error()
			}
			statuses[i] = st
		}()
	}
	wg.Wait()

	healthy = true
	for _, st := range statuses {
		if !st.Healthy && !st.Optional {
			healthy = false
		}
	}
	return healthy, statuses
}
