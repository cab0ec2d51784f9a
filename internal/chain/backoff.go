package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// ErrRateLimited marks a failure caused by the remote side throttling us.
// It is always treated as transient.
var ErrRateLimited = &payerr.PaysendError{
	Code:     "RATE_LIMITED",
	Message:  "rate limited",
	ExitCode: payerr.ExitNetwork,
}

// Backoff bounds how a transient failure is retried. Attempts counts the
// first try.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultBackoff is the policy used for broadcast endpoints.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 4, Base: 500 * time.Millisecond, Max: 5 * time.Second}
}

// Delay returns the pause before retry n, counted from zero. The base
// doubles per retry up to Max and the result is jittered into [d/2, d).
func (b Backoff) Delay(n int) time.Duration {
	d := b.Max
	if n < 30 {
		if grown := b.Base << n; grown > 0 && grown < b.Max {
			d = grown
		}
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half) //nolint:gosec // G404: jitter only
}

type transientError struct {
	err   error
	after time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying.
func Transient(err error) error {
	return TransientAfter(err, 0)
}

// TransientAfter marks err as worth retrying no sooner than d from now.
func TransientAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err, after: d}
}

// IsTransient reports whether err was marked by Transient or carries
// ErrRateLimited.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te) || errors.Is(err, ErrRateLimited)
}

// Retry runs op until it succeeds, fails permanently, the attempts run out
// or ctx ends. op receives the zero-based attempt number. A delay asked for
// by TransientAfter is honoured up to Max.
func Retry(ctx context.Context, b Backoff, op func(attempt int) error) error {
	attempts := max(b.Attempts, 1)

	var err error
	for n := range attempts {
		if err = op(n); err == nil || !IsTransient(err) {
			return err
		}
		if n == attempts-1 {
			break
		}

		wait := b.Delay(n)
		var te *transientError
		if errors.As(err, &te) && te.after > wait {
			wait = min(te.after, max(b.Max, wait))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
