package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docparse/internal/document"
	"github.com/dgallion1/docparse/internal/fetch"
	"github.com/dgallion1/docparse/internal/splitter"
)

// Orchestrator owns the async job surface of the service: a bounded queue
// of submitted documents drained by worker goroutines, each of which runs
// the synchronous scheduler for its job's document.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	scheduler *Scheduler
	split     splitter.Config
	log       *slog.Logger

	workerCount  int
	maxQueueSize int

	// mu orders Submit sends against the queue close in Stop.
	mu     sync.Mutex
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the job pipeline around an already-configured
// scheduler.
func NewOrchestrator(scheduler *Scheduler, split splitter.Config, workerCount, maxQueueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:         NewJobStore(jobTTL),
		queue:        make(chan *Job, maxQueueSize),
		scheduler:    scheduler,
		split:        split,
		log:          log,
		workerCount:  workerCount,
		maxQueueSize: maxQueueSize,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.workerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	// Job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// process runs one job to a terminal state.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusFetching, "fetching")
	src, err := fetch.FromBytes(job.Filename, job.FileData())
	if err != nil {
		log.Error("source rejected", "error", err)
		job.AddError(err.Error())
		job.SetResult(document.FailedResult(job.Filename, "", 0, err.Error()))
		job.releaseData()
		return
	}

	if parts, err := splitter.Split(src, o.split); err == nil {
		job.SetTotalParts(len(parts))
	}

	job.SetStatus(StatusParsing, "parsing")
	results := o.scheduler.ParseAll(ctx, []*document.Source{src})
	job.SetResult(results[0])
	job.releaseData()
	log.Info("job finished", "status", job.Status, "attempts", results[0].Attempts)
}

// Stop gracefully shuts down the pipeline. Submissions arriving after Stop
// are rejected rather than racing the queue close.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		job.SetStatus(StatusFailed, "shutdown")
		return fmt.Errorf("orchestrator is stopped")
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.maxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
