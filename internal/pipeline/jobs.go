package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docparse/internal/document"
)

// JobStatus represents the state of a parse job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = "fetching"
	StatusParsing   JobStatus = "parsing"
	StatusCompleted JobStatus = "completed"
	StatusPartial   JobStatus = "partial"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job tracks the state of a single document parse submitted through the
// API. The orchestration core itself is stateless; jobs exist only so
// callers can poll progress and fetch the result.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *document.Result
	errors   []string
}

// Progress tracks parse progress for status polling.
type Progress struct {
	TotalPages int      `json:"total_pages"`
	TotalParts int      `json:"total_parts"`
	Attempts   int      `json:"attempts"`
	Gaps       int      `json:"gaps"`
	Errors     []string `json:"errors"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        NewID(),
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetResult stores the merged document result and derives the terminal
// status from it.
func (j *Job) SetResult(res *document.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Progress.TotalPages = res.EndPage
	j.Progress.Attempts = res.Attempts
	j.Progress.Gaps = len(res.Gaps)
	if len(res.Errors) > 0 {
		j.errors = append(j.errors, res.Errors...)
		j.Progress.Errors = j.errors
	}
	switch res.Status {
	case document.StatusFull:
		j.Status = StatusCompleted
	case document.StatusPartial:
		j.Status = StatusPartial
	case document.StatusCancelled:
		j.Status = StatusCancelled
	default:
		j.Status = StatusFailed
	}
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Result returns the merged result, or nil while the job is still running.
func (j *Job) Result() *document.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// SetTotalParts records the part count once splitting is done.
func (j *Job) SetTotalParts(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalParts = n
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseData drops the raw bytes once parsing is finished.
func (j *Job) releaseData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			TotalPages: j.Progress.TotalPages,
			TotalParts: j.Progress.TotalParts,
			Attempts:   j.Progress.Attempts,
			Gaps:       j.Progress.Gaps,
			Errors:     errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
