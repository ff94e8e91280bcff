// Package retry runs contended operations under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when an operation is still contended after the
// last allowed attempt.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Defaults used when a Policy field is zero.
const (
	DefaultMaxRetries      = 1024
	DefaultInitialInterval = time.Microsecond
	DefaultMaxInterval     = time.Millisecond
)

// Policy configures Do.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Throttle, if set, is awaited before every restart.
	Throttle func(ctx context.Context) error

	// OnRetry, if set, is called after each transient failure.
	OnRetry func(err error, wait time.Duration)
}

type transient struct {
	err error
}

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

// Again marks err as transient: Do will back off and call the operation again.
// Any other error ends the loop immediately.
func Again(err error) error {
	if err == nil {
		return nil
	}
	return &transient{err: err}
}

// IsTransient reports whether err was marked with Again.
func IsTransient(err error) bool {
	var t *transient
	return errors.As(err, &t)
}

// Do calls op until it succeeds, fails permanently, the attempts are
// exhausted or ctx is done. attempt starts at zero.
func Do(ctx context.Context, p Policy, op func(attempt int) error) error {
	b := newBackOff(p)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		n := attempt
		attempt++

		if n > 0 && p.Throttle != nil {
			if err := p.Throttle(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		err := op(n)
		if err == nil || IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx), p.OnRetry)

	if err == nil {
		return nil
	}

	var t *transient
	if errors.As(err, &t) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, t.err)
	}
	return err
}

func newBackOff(p Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = DefaultInitialInterval
	}
	exp.MaxInterval = p.MaxInterval
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = DefaultMaxInterval
	}
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	maxRetries := p.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	return backoff.WithMaxRetries(exp, maxRetries)
}
