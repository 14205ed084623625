package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docparse/internal/extract"
)

func transientErr() error {
	return &extract.RemoteError{Kind: extract.KindServerError, StatusCode: 502}
}

func TestRetryPolicy_PermanentNeverRetries(t *testing.T) {
	p := DefaultRetryPolicy()
	for _, kind := range []extract.ErrorKind{extract.KindBadRequest, extract.KindAuthError} {
		if _, ok := p.Next(1, &extract.RemoteError{Kind: kind}); ok {
			t.Errorf("%s: expected no retry", kind)
		}
	}
	if _, ok := p.Next(1, errors.New("unclassified")); ok {
		t.Error("unclassified errors must not retry")
	}
}

func TestRetryPolicy_TransientRetriesUntilExhausted(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseWait: time.Millisecond, MaxWait: time.Second}

	if _, ok := p.Next(1, transientErr()); !ok {
		t.Error("attempt 1 of 3 should retry")
	}
	if _, ok := p.Next(2, transientErr()); !ok {
		t.Error("attempt 2 of 3 should retry")
	}
	if _, ok := p.Next(3, transientErr()); ok {
		t.Error("attempt 3 of 3 must give up")
	}
}

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{MaxRetries: 100, BaseWait: time.Second, MaxWait: 10 * time.Second}

	w1, ok := p.Next(1, transientErr())
	if !ok {
		t.Fatal("expected retry")
	}
	// Jitter adds up to half the base, so attempt 1 waits in [1s, 1.5s].
	if w1 < time.Second || w1 > 1500*time.Millisecond {
		t.Errorf("attempt 1 wait out of range: %s", w1)
	}

	// Deep attempts are capped at MaxWait even with jitter.
	for attempt := 5; attempt < 40; attempt += 7 {
		w, ok := p.Next(attempt, transientErr())
		if !ok {
			t.Fatalf("attempt %d: expected retry", attempt)
		}
		if w > p.MaxWait {
			t.Errorf("attempt %d: wait %s exceeds cap %s", attempt, w, p.MaxWait)
		}
		if w <= 0 {
			t.Errorf("attempt %d: non-positive wait %s", attempt, w)
		}
	}
}

func TestRetryPolicy_HonorsRetryAfterHint(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BaseWait: time.Second, MaxWait: 30 * time.Second}

	err := &extract.RemoteError{Kind: extract.KindRateLimited, RetryAfter: 5 * time.Second}
	w, ok := p.Next(1, err)
	if !ok {
		t.Fatal("expected retry")
	}
	if w != 5*time.Second {
		t.Errorf("expected hinted wait 5s, got %s", w)
	}

	// Hints above the ceiling are ignored in favor of computed backoff.
	err.RetryAfter = 5 * time.Minute
	w, ok = p.Next(1, err)
	if !ok {
		t.Fatal("expected retry")
	}
	if w > p.MaxWait {
		t.Errorf("oversized hint must not exceed cap, got %s", w)
	}
}

func TestRetryPolicy_ZeroValueDefaults(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}
	w, ok := p.Next(1, transientErr())
	if !ok {
		t.Fatal("expected retry")
	}
	if w <= 0 {
		t.Errorf("zero-value waits must fall back to defaults, got %s", w)
	}
}
