package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docparse/internal/extract"
)

// RetryPolicy decides whether a failed part attempt is retried and how long
// to wait first. It is stateless: the decision is a pure function of the
// attempt count and the error.
type RetryPolicy struct {
	MaxRetries int           // Maximum total attempts per part.
	BaseWait   time.Duration // First backoff interval.
	MaxWait    time.Duration // Backoff ceiling.
}

// DefaultRetryPolicy matches the extraction endpoint's recommended client
// behavior: many cheap retries with a one-minute ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 100,
		BaseWait:   time.Second,
		MaxWait:    60 * time.Second,
	}
}

// Next returns the wait before the next attempt, or false when the part
// must fail terminally. attempt is the number of attempts already made
// (>= 1). Permanent errors and exhausted budgets never retry. A server
// Retry-After hint overrides the computed backoff when it fits under
// MaxWait.
func (p RetryPolicy) Next(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxRetries {
		return 0, false
	}
	if !extract.IsTransient(err) {
		return 0, false
	}

	wait := p.backoff(attempt)
	var remote *extract.RemoteError
	if errors.As(err, &remote) && remote.RetryAfter > 0 && remote.RetryAfter <= p.MaxWait {
		wait = remote.RetryAfter
	}
	return wait, true
}

// backoff computes the exponential wait for attempt n (1-indexed) with
// jitter, so concurrent parts hitting the same rate limit don't retry in
// lockstep.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseWait
	if base <= 0 {
		base = time.Second
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}

	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	wait := base << uint(shift)
	if wait > maxWait || wait <= 0 {
		wait = maxWait
	}
	wait += time.Duration(rand.Int64N(int64(wait)/2 + 1))
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}
