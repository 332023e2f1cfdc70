// Package retry wraps a single operation with a per-attempt timeout and
// bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const maxInterval = 24 * time.Hour

// Policy controls Run. Retries+1 attempts are made in total; before attempt
// k+1 (k counted from 0) the executor sleeps BackoffBase * 2^k.
type Policy struct {
	Retries     int
	Timeout     time.Duration
	BackoffBase time.Duration

	// OnRetry, if set, is called before every sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BackoffBase
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = maxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// Run executes op until it succeeds or the policy is exhausted, and returns
// the last error in the latter case.
func Run[T any](ctx context.Context, log *logrus.Entry, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	total := p.Retries + 1
	if total < 1 {
		total = 1
	}

	wrapped := func() (T, error) {
		attempt++
		actx, cancel := attemptContext(ctx, p.Timeout)
		defer cancel()

		res, err := op(actx)
		if err == nil && actx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("attempt exceeded %s: %w", p.Timeout, context.DeadlineExceeded)
		}
		if err != nil {
			var zero T
			if ctx.Err() != nil {
				return zero, backoff.Permanent(err)
			}
			log.WithField("attempt", fmt.Sprintf("%d/%d", attempt, total)).
				WithField("error", err.Error()).
				Warn("call failed")
			return zero, err
		}
		return res, nil
	}

	notify := func(err error, d time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, d, err)
		}
		log.WithField("delay", d.String()).Debug("backing off before next attempt")
	}

	return backoff.RetryNotifyWithData(wrapped, p.backOff(ctx), notify)
}

// Optional is Run for steps whose failure must not abort the caller: it logs
// the last error and reports ok=false instead of returning it.
func Optional[T any](ctx context.Context, log *logrus.Entry, p Policy, op func(context.Context) (T, error)) (T, bool) {
	res, err := Run(ctx, log, p, op)
	if err != nil {
		log.WithField("error", err.Error()).
			WithField("attempts", p.Retries+1).
			Error("all attempts failed")
		return res, false
	}
	return res, true
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
