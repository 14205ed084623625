package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/extract"
)

// Extractor performs one remote extraction attempt for a page range.
// *extract.Client implements it; tests substitute fakes.
type Extractor interface {
	ParsePart(ctx context.Context, src *document.Source, part document.Part) (*extract.Result, error)
}

// errNotAttempted marks parts that were never dispatched because admission
// stopped (cancellation or an auth failure on a sibling part).
var errNotAttempted = errors.New("part not attempted")

// PartOutcome is the terminal state of one part's job: either extracted
// data or the final error, plus how many attempts it took.
type PartOutcome struct {
	Part     document.Part
	Data     *extract.Result
	Attempts int
	Err      error
}

// Succeeded reports whether the part produced data.
func (o PartOutcome) Succeeded() bool {
	return o.Err == nil && o.Data != nil
}

// executor runs a single part job to a terminal state: attempt, classify,
// consult the retry policy, wait, repeat. Retrying never creates new work;
// the same part is re-sent until it succeeds or the policy gives up.
type executor struct {
	client  Extractor
	policy  RetryPolicy
	timeout time.Duration // Per-attempt budget; 0 disables.
	report  retryReporter
	stats   *extract.CallStats
	log     *slog.Logger
}

func (e *executor) run(ctx context.Context, src *document.Source, part document.Part) PartOutcome {
	out := PartOutcome{Part: part}

	for attempt := 1; ; attempt++ {
		out.Attempts = attempt

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if e.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		}
		data, err := e.client.ParsePart(attemptCtx, src, part)
		cancel()

		if err == nil {
			out.Data = data
			e.recordOutcome(true)
			return out
		}

		// The overall context beats attempt-level classification: a
		// cancelled scheduler must not keep retrying.
		if ctx.Err() != nil {
			out.Err = ctx.Err()
			e.recordOutcome(false)
			return out
		}

		// An expired per-attempt budget is a transient timeout.
		if errors.Is(err, context.DeadlineExceeded) {
			err = &extract.RemoteError{Kind: extract.KindTimeout, Message: "attempt deadline exceeded"}
		}

		wait, retry := e.policy.Next(attempt, err)
		if !retry {
			out.Err = err
			e.recordOutcome(false)
			return out
		}

		e.report.attemptFailed(src.Name, part, attempt, err)
		if e.stats != nil {
			e.stats.RecordRetry()
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			out.Err = ctx.Err()
			e.recordOutcome(false)
			return out
		}
	}
}

func (e *executor) recordOutcome(succeeded bool) {
	if e.stats != nil {
		e.stats.RecordOutcome(succeeded)
	}
}
