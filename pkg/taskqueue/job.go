package taskqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a background job.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// ErrCanceled is returned by a job body that stopped at a cancellation
// checkpoint. The queue records the job as Canceled, not Failed.
var ErrCanceled = errors.New("taskqueue: job canceled")

// RunFunc is a job body. It reports progress through the handle and returns
// the result payload, ErrCanceled at a cancellation checkpoint, or any other
// error on failure. Errors never cross the worker boundary as panics; a
// panic is recovered and recorded as a failure.
type RunFunc func(ctx context.Context, h *Handle) (result string, err error)

// Job is one unit of background work. Mutable progress fields are written
// only by the worker executing the job; the cancel flag is the single field
// shared with other goroutines and is a plain atomic.
type Job struct {
	ID       string
	Kind     string
	TenantID string
	UserID   string
	Source   string

	run RunFunc

	// Guarded by the owning registry's lock.
	status   Status
	result   string
	errMsg   string
	ownerID  string
	started  time.Time
	finished time.Time

	// Atomics, shared between the worker and pollers.
	progress  atomic.Int32
	processed atomic.Int64
	canceled  atomic.Bool
	heartbeat atomic.Int64 // unix nano of the last worker checkpoint
}

// NewJob builds a queued job ready for Registry.QueueTask.
func NewJob(id, kind, tenantID, userID, source string, run RunFunc) *Job {
	return &Job{
		ID:       id,
		Kind:     kind,
		TenantID: tenantID,
		UserID:   userID,
		Source:   source,
		run:      run,
		status:   StatusQueued,
	}
}

// View is a consistent snapshot of a job, safe to hand to callers.
type View struct {
	ID        string
	Kind      string
	TenantID  string
	UserID    string
	Source    string
	Status    Status
	Progress  int
	Processed int64
	Result    string
	Error     string
	Started   time.Time
	FinishedAt time.Time
}

// Finished reports whether the snapshot shows a terminal job.
func (v View) Finished() bool {
	return v.Status.Terminal()
}

// Handle is handed to a running job body. It is the only way a body reports
// progress and observes cancellation; every method doubles as a heartbeat.
type Handle struct {
	job *Job
	ctx context.Context
}

// Canceled is the cooperative cancellation checkpoint. Bodies poll it once
// per batch of work and return ErrCanceled when it turns true.
func (h *Handle) Canceled() bool {
	h.beat()
	if h.ctx.Err() != nil {
		return true
	}
	return h.job.canceled.Load()
}

// SetProgress publishes progress in percent. Observed values never regress:
// lower values than the current one are ignored, higher than 100 clamped.
func (h *Handle) SetProgress(percent int) {
	h.beat()
	if percent > 100 {
		percent = 100
	}
	for {
		cur := h.job.progress.Load()
		if int32(percent) <= cur {
			return
		}
		if h.job.progress.CompareAndSwap(cur, int32(percent)) {
			return
		}
	}
}

// AddProcessed adds to the processed-items counter.
func (h *Handle) AddProcessed(n int64) {
	h.beat()
	h.job.processed.Add(n)
}

// Processed returns the current processed-items counter.
func (h *Handle) Processed() int64 {
	return h.job.processed.Load()
}

func (h *Handle) beat() {
	h.job.heartbeat.Store(time.Now().UnixNano())
}
