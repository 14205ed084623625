package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/splitter"
)

func newTestOrchestrator(t *testing.T, queueSize int) *Orchestrator {
	t.Helper()
	s := NewScheduler(okExtractor(0), Options{
		BatchSize:  2,
		MaxWorkers: 2,
		Split:      splitter.Config{MaxPages: 5},
		Policy:     fastPolicy(3),
	}, slog.Default())
	o := NewOrchestrator(s, splitter.Config{MaxPages: 5}, 2, queueSize, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	t.Cleanup(func() {
		cancel()
		o.wg.Wait()
	})
	return o
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) *Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job := o.GetJob(id)
		if job != nil {
			switch job.Snapshot().Status {
			case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
				return job
			}
		}
		select {
		case <-deadline:
			t.Fatal("job did not reach a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOrchestrator_ImageJobCompletes(t *testing.T) {
	o := newTestOrchestrator(t, 10)

	// Images need no PDF probing, so any bytes will do.
	job := NewJob("scan.png", []byte{0x89, 'P', 'N', 'G'})
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	done := waitTerminal(t, o, job.ID)
	snap := done.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalParts != 1 || snap.Progress.TotalPages != 1 {
		t.Errorf("expected single-page single-part progress, got %+v", snap.Progress)
	}

	res := done.Result()
	if res == nil || res.Status != document.StatusFull {
		t.Fatalf("expected full result, got %+v", res)
	}
	if done.FileData() != nil {
		t.Error("expected raw bytes released after the job finished")
	}
}

func TestOrchestrator_RejectedSourceFailsJob(t *testing.T) {
	o := newTestOrchestrator(t, 10)

	job := NewJob("notes.txt", []byte("plain text"))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	done := waitTerminal(t, o, job.ID)
	snap := done.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected a recorded error for the rejected source")
	}
}

func TestOrchestrator_SubmitAfterStopIsRejected(t *testing.T) {
	s := NewScheduler(okExtractor(0), Options{
		BatchSize:  1,
		MaxWorkers: 1,
		Policy:     fastPolicy(3),
	}, slog.Default())
	o := NewOrchestrator(s, splitter.Config{MaxPages: 5}, 1, 10, time.Hour, slog.Default())
	o.Start(context.Background())
	o.Stop()

	late := NewJob("late.png", []byte{1})
	if err := o.Submit(late); err == nil {
		t.Fatal("expected submit to be rejected after stop")
	}
	if late.Snapshot().Status != StatusFailed {
		t.Errorf("expected late job marked failed, got %s", late.Snapshot().Status)
	}

	// Stop again must not panic on the already-closed queue.
	o.Stop()
}

func TestOrchestrator_QueueFull(t *testing.T) {
	s := NewScheduler(okExtractor(0), Options{
		BatchSize:  1,
		MaxWorkers: 1,
		Policy:     fastPolicy(3),
	}, slog.Default())
	// Never started, so nothing drains the queue.
	o := NewOrchestrator(s, splitter.Config{MaxPages: 5}, 1, 1, time.Hour, slog.Default())

	if err := o.Submit(NewJob("a.png", []byte{1})); err != nil {
		t.Fatalf("first submit should fit the queue: %v", err)
	}
	overflow := NewJob("b.png", []byte{1})
	if err := o.Submit(overflow); err == nil {
		t.Fatal("expected queue-full error")
	}
	if overflow.Snapshot().Status != StatusFailed {
		t.Error("expected overflow job marked failed")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
