package rating

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/rs/zerolog/log"
)

// Defaults for Policy.
const (
	DefaultMaxAttempts = 4
	DefaultBackoffBase = 2 * time.Second
)

// Policy is the fixed exponential backoff shared by rating and reporting:
// wait Base, then 2*Base, 4*Base... with no jitter, for at most MaxAttempts
// calls in total.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Base: DefaultBackoffBase}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(1<<uint(attempts)) * p.Base
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// shouldRetry reports whether err belongs to the retried class: rate limit,
// quota, or server overload. Malformed responses never are.
func shouldRetry(err error) bool {
	if errors.Is(err, chat.ErrMalformedResponse) {
		return false
	}
	return auth.ClassifyError(err).Retryable()
}

// run calls fn under the policy and returns the number of calls made.
// The returned error is the last error from fn.
func (p Policy) run(ctx context.Context, operation string, fn func() error) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempts).
			Int("max_attempts", p.MaxAttempts).
			Dur("retry_in", wait).
			Msg("Retryable model error, backing off")
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), notify)
	return attempts, err
}
