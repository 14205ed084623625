package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/extract"
	"github.com/dgallion1/docparse/internal/splitter"
)

// Options configures the scheduler. Values are read once at construction;
// there is no ambient mutable state.
type Options struct {
	BatchSize         int // Documents in flight at once (B).
	MaxWorkers        int // Part workers per document (W).
	Split             splitter.Config
	Policy            RetryPolicy
	PerAttemptTimeout time.Duration
	RetryLogStyle     RetryLogStyle
	Stats             *extract.CallStats

	// OnDocumentDone fires after each document's result is finalized.
	// Called from worker goroutines; must be safe for concurrent use.
	OnDocumentDone func(index int, res *document.Result)
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 4
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 5
	}
	if o.Policy.MaxRetries <= 0 {
		o.Policy = DefaultRetryPolicy()
	}
	return o
}

// Scheduler runs all part jobs of a document batch under two nested
// concurrency bounds: at most BatchSize documents have work in flight, and
// each document runs at most MaxWorkers parts at once, so system-wide
// in-flight calls never exceed B×W.
type Scheduler struct {
	client Extractor
	opts   Options
	log    *slog.Logger
}

func NewScheduler(client Extractor, opts Options, log *slog.Logger) *Scheduler {
	return &Scheduler{
		client: client,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// ParseAll parses every source and returns one result per input, in input
// order, regardless of completion order. Documents are admitted in input
// order as batch slots free up. On cancellation, completed documents keep
// their results and the rest are marked cancelled; no input is ever
// silently dropped.
func (s *Scheduler) ParseAll(ctx context.Context, sources []*document.Source) []*document.Result {
	results := make([]*document.Result, len(sources))
	docSem := make(chan struct{}, s.opts.BatchSize)
	var wg sync.WaitGroup
	var stopAdmission atomic.Bool

admission:
	for i, src := range sources {
		if ctx.Err() != nil {
			break
		}
		select {
		case docSem <- struct{}{}:
		case <-ctx.Done():
			break admission
		}
		wg.Add(1)
		go func(i int, src *document.Source) {
			defer wg.Done()
			defer func() { <-docSem }()
			res := s.parseDocument(ctx, src, &stopAdmission)
			results[i] = res
			if s.opts.OnDocumentDone != nil {
				s.opts.OnDocumentDone(i, res)
			}
		}(i, src)
	}
	wg.Wait()

	for i, res := range results {
		if res == nil {
			results[i] = document.CancelledResult(sources[i].Name, sources[i].Kind)
		}
	}
	return results
}

// parseDocument splits one source, runs its parts under the per-document
// worker bound, and merges the outcomes. Part failures are isolated: they
// become gaps in this document's result and never affect siblings.
func (s *Scheduler) parseDocument(ctx context.Context, src *document.Source, stopAdmission *atomic.Bool) *document.Result {
	log := s.log.With("doc", src.Name)

	parts, err := splitter.Split(src, s.opts.Split)
	if err != nil {
		log.Error("split failed", "error", err)
		return document.FailedResult(src.Name, src.Kind, src.PageCount, documentFailReason(err))
	}

	exec := &executor{
		client:  s.client,
		policy:  s.opts.Policy,
		timeout: s.opts.PerAttemptTimeout,
		report:  retryReporter{style: s.opts.RetryLogStyle, log: log},
		stats:   s.opts.Stats,
		log:     log,
	}

	asm := newAssembly(src, parts)
	partSem := make(chan struct{}, s.opts.MaxWorkers)
	var wg sync.WaitGroup

	for _, part := range parts {
		if stopAdmission.Load() || ctx.Err() != nil {
			asm.complete(PartOutcome{Part: part, Err: errNotAttempted})
			continue
		}
		select {
		case partSem <- struct{}{}:
		case <-ctx.Done():
			asm.complete(PartOutcome{Part: part, Err: errNotAttempted})
			continue
		}
		wg.Add(1)
		go func(part document.Part) {
			defer wg.Done()
			defer func() { <-partSem }()
			// Admission may have raced with a sibling flipping the stop
			// flag while this part waited on a worker slot.
			if stopAdmission.Load() || ctx.Err() != nil {
				asm.complete(PartOutcome{Part: part, Err: errNotAttempted})
				return
			}
			out := exec.run(ctx, src, part)
			var remote *extract.RemoteError
			if errors.As(out.Err, &remote) && remote.Kind == extract.KindAuthError {
				// Credentials are almost certainly bad for every
				// remaining call; stop admitting new parts and let
				// in-flight work drain.
				if stopAdmission.CompareAndSwap(false, true) {
					log.Warn("auth failure, stopping admission of new part work", "part", part.Index)
				}
			}
			asm.complete(out)
		}(part)
	}
	wg.Wait()

	res := asm.finalize()
	log.Info("document merged",
		"status", res.Status,
		"parts", len(parts),
		"gaps", len(res.Gaps),
		"attempts", res.Attempts,
	)
	return res
}

func documentFailReason(err error) string {
	var invalid *document.InvalidDocumentError
	if errors.As(err, &invalid) {
		return "InvalidDocument"
	}
	var unavailable *document.SourceUnavailableError
	if errors.As(err, &unavailable) {
		return "SourceUnavailable"
	}
	return "Error"
}
