// Package retry applies a fixed-attempt, fixed-delay policy around a single remote call.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// CollaboratorPolicy is used for the collaborators endpoint: three attempts, two seconds apart.
var CollaboratorPolicy = Policy{MaxAttempts: 3, Delay: 2 * time.Second}

func (p Policy) retries() uint64 {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return uint64(p.MaxAttempts - 1)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), p.retries()),
		ctx,
	)
}

// Do runs op until it succeeds or the policy is exhausted, returning the last error.
// Context cancellation is never retried.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData[T](
		func() (T, error) {
			attempt++
			res, err := op(ctx)
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return res, backoff.Permanent(err)
			}
			return res, err
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_attempts", p.MaxAttempts).
				Dur("wait", wait).
				Msg("Remote call failed, retrying")
		},
	)
}
