package taskqueue

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry is the process-wide table of in-flight and recently finished
// jobs. It exclusively owns job lifetime: jobs enter through QueueTask,
// change state through the queue's claim/finish calls, and leave through
// RemoveTask once terminal.
type Registry struct {
	mu             sync.RWMutex
	jobs           map[string]*Job
	serverID       string
	reaperTimeout  time.Duration
	retainFinished time.Duration
}

// NewRegistry creates an empty registry. serverID names the owning process;
// reaperTimeout bounds how long a Running job may go without a worker
// heartbeat before the reaper reclaims it; retainFinished bounds how long a
// terminal job stays queryable before the reaper drops its record.
func NewRegistry(serverID string, reaperTimeout, retainFinished time.Duration) *Registry {
	if reaperTimeout <= 0 {
		reaperTimeout = 2 * time.Minute
	}
	if retainFinished <= 0 {
		retainFinished = 10 * time.Minute
	}
	return &Registry{
		jobs:           make(map[string]*Job),
		serverID:       serverID,
		reaperTimeout:  reaperTimeout,
		retainFinished: retainFinished,
	}
}

// QueueTask registers the job as Queued. When a non-terminal job with the
// same id already exists the call is a no-op and the existing job is
// returned; duplicate requests are idempotent, not errors.
func (r *Registry) QueueTask(job *Job) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[job.ID]; ok && !existing.status.Terminal() {
		return existing, false
	}
	job.status = StatusQueued
	job.ownerID = r.serverID
	job.heartbeat.Store(time.Now().UnixNano())
	r.jobs[job.ID] = job
	return job, true
}

// GetTask returns a snapshot of one job. Reads never block producers.
func (r *Registry) GetTask(id string) (View, bool) {
	r.reap()
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return View{}, false
	}
	return r.snapshotLocked(job), true
}

// GetTasks returns snapshots of every registered job.
func (r *Registry) GetTasks() []View {
	r.reap()
	r.mu.RLock()
	defer r.mu.RUnlock()
	views := make([]View, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, r.snapshotLocked(job))
	}
	return views
}

// CancelTask sets the cancellation flag on a non-terminal job. The job
// reaches Canceled only when its body observes the flag at a checkpoint.
// Canceling an unknown or terminal job has no effect.
func (r *Registry) CancelTask(id string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok || job.status.Terminal() {
		return
	}
	job.canceled.Store(true)
}

// RemoveTask deletes a terminal job's record and reports whether it did.
// Non-terminal jobs are refused; callers must cancel and wait instead.
func (r *Registry) RemoveTask(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	if !job.status.Terminal() {
		return false
	}
	delete(r.jobs, id)
	return true
}

// claim atomically moves a Queued job to Running on behalf of a worker.
// Only one worker can win the claim.
func (r *Registry) claim(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.status != StatusQueued {
		return nil, false
	}
	job.status = StatusRunning
	job.started = time.Now()
	job.heartbeat.Store(job.started.UnixNano())
	return job, true
}

// finish records the terminal state written by the executing worker.
func (r *Registry) finish(id string, status Status, result, errMsg string) {
	if !status.Terminal() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.status.Terminal() {
		return
	}
	job.status = status
	job.result = result
	job.errMsg = errMsg
	job.finished = time.Now()
	// A done job reads 100% whether it succeeded or failed; only a
	// canceled job keeps the partial progress it had reached.
	if status != StatusCanceled {
		job.progress.Store(100)
	}
}

// reap is the opportunistic housekeeping pass invoked on reads. A Running
// job whose worker has not heartbeat within the timeout lost its process; it
// is force-completed at 100% so pollers never hang on it. The conservative
// timeout means the reaper only ever reclaims obviously dead jobs. Terminal
// jobs past the retention window are dropped so the table stays bounded.
func (r *Registry) reap() {
	now := time.Now()
	cutoff := now.Add(-r.reaperTimeout).UnixNano()
	expiry := now.Add(-r.retainFinished)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		if job.status.Terminal() {
			if !job.finished.IsZero() && job.finished.Before(expiry) {
				delete(r.jobs, id)
			}
			continue
		}
		if job.status != StatusRunning {
			continue
		}
		if job.heartbeat.Load() >= cutoff {
			continue
		}
		logrus.Warnf("[TASK_REGISTRY] Reaping stale job %s (%s) owned by %s: no heartbeat for %v",
			job.ID, job.Kind, job.ownerID, r.reaperTimeout)
		job.status = StatusCompleted
		job.finished = now
		job.progress.Store(100)
	}
}

// snapshotLocked copies a job into a View. Callers hold at least r.mu.RLock.
func (r *Registry) snapshotLocked(job *Job) View {
	return View{
		ID:        job.ID,
		Kind:      job.Kind,
		TenantID:  job.TenantID,
		UserID:    job.UserID,
		Source:    job.Source,
		Status:    job.status,
		Progress:  int(job.progress.Load()),
		Processed: job.processed.Load(),
		Result:    job.result,
		Error:     job.errMsg,
		Started:   job.started,
		FinishedAt: job.finished,
	}
}
