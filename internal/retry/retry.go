// Package retry re-runs API calls with exponential backoff and jitter.
package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"
)

// Policy bounds a retry loop. A zero Policy makes a single attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Once makes one attempt and never waits.
var Once = Policy{MaxAttempts: 1}

// cryptoInt64n returns a random int64 in [0, n) using crypto/rand.
func cryptoInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	v := binary.LittleEndian.Uint64(b[:]) >> 1 // ensure fits in int64
	return int64(v % uint64(n))                //nolint:gosec // n>0, v%n < n, safe
}

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do calls fn until it succeeds, returns a permanent error, the context is
// cancelled, or p.MaxAttempts calls have been made. The delay starts at
// p.BaseDelay and doubles after every failure, with +-25% jitter.
//
// The error returned is the last one fn produced, unwrapped from
// PermanentError.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	delay := p.BaseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		if attempt == maxAttempts {
			break
		}

		jitter := delay / 4
		sleep := delay - jitter + time.Duration(cryptoInt64n(int64(2*jitter+1)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
	}

	return err
}
