// Package retry runs an operation a bounded number of times with a constant
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrExhausted is returned once every attempt has failed.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrRejected marks a result that came back without error but was not
	// acceptable to the caller.
	ErrRejected = errors.New("result rejected")
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Notify, if set, is called before each wait with the failure that
	// caused it.
	Notify func(err error, wait time.Duration)
}

// Do calls op until it returns a nil error and a result accepted by accept,
// or until p.MaxAttempts calls have been made. A nil accept takes every
// result. It returns the number of calls made.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), accept func(T) bool) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(maxAttempts-1)),
		ctx,
	)

	attempts := 0
	res, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempts++
			v, err := op(ctx)
			if err != nil {
				var zero T
				return zero, err
			}
			if accept != nil && !accept(v) {
				var zero T
				return zero, ErrRejected
			}
			return v, nil
		},
		b,
		p.Notify,
	)
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, attempts, ctxErr
		}
		return zero, attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return res, attempts, nil
}
