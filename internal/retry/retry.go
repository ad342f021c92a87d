// Package retry runs a single upload job with bounded, backed-off retries.
//
// Only errors classified as retryable by the errors package are repeated;
// everything else (missing files, bad credentials, invalid keys) fails on the
// first attempt. Exhausting the retries is reported to the caller, never
// escalated further.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	uperrors "github.com/mmyddd/modpack-uploader/errors"
)

// Policy configures the retry behavior.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first one. Zero disables retries.
	MaxRetries int

	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration

	// Multiplier grows the wait after each retry.
	Multiplier float64

	// Jitter randomizes each wait by ±Jitter (0 to 1).
	Jitter float64

	// Retryable overrides the default classification (errors.IsRetryable).
	Retryable func(error) bool
}

// DefaultPolicy returns three retries starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Jitter:          0.2,
	}
}

// Notify is called before each retry with the attempt that just failed (1-based),
// its error and the wait before the next attempt.
type Notify func(attempt int, err error, wait time.Duration)

// Do runs fn until it succeeds, returns a non-retryable error, the retries are
// exhausted or ctx is done. It returns the number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, notify Notify) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	retryable := p.Retryable
	if retryable == nil {
		retryable = uperrors.IsRetryable
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := fn(ctx, attempts)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), onRetry)
	return attempts, err
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		exp.Multiplier = p.Multiplier
	}
	exp.RandomizationFactor = p.Jitter
	// bounded by attempts, not wall time
	exp.MaxElapsedTime = 0
	exp.Reset()

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)
}
