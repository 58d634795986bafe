package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Queue executes registered jobs on a fixed pool of workers. Jobs run truly
// concurrently up to the pool size; a failure inside one job never reaches
// another job or the pool itself.
type Queue struct {
	registry *Registry
	workers  int
	pending  chan *Job

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
	stopCh   chan struct{}
}

// NewQueue creates a queue backed by the given registry.
func NewQueue(registry *Registry, workers, queueSize int) *Queue {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Queue{
		registry: registry,
		workers:  workers,
		pending:  make(chan *Job, queueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(ctx, i)
	}
	logrus.Infof("[TASK_QUEUE] Started with %d workers, queue size: %d", q.workers, cap(q.pending))
}

// Enqueue registers the job and hands it to the pool without blocking the
// caller. When a non-terminal job with the same id already exists, that job
// is returned unchanged and nothing is queued. A full queue fails the job
// immediately rather than blocking.
func (q *Queue) Enqueue(job *Job) (View, error) {
	if q.stopped.Load() {
		return View{}, fmt.Errorf("taskqueue: queue is stopped")
	}

	stored, created := q.registry.QueueTask(job)
	if !created {
		view, _ := q.registry.GetTask(stored.ID)
		return view, nil
	}

	select {
	case q.pending <- stored:
	default:
		logrus.Warnf("[TASK_QUEUE] Queue full, failing job %s (%s)", stored.ID, stored.Kind)
		q.registry.finish(stored.ID, StatusFailed, "", "operation queue is full")
	}

	view, _ := q.registry.GetTask(stored.ID)
	return view, nil
}

// Stop drains in-flight jobs and stops the workers.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.stopped.Store(true)
		close(q.stopCh)
		q.wg.Wait()
		logrus.Info("[TASK_QUEUE] All workers stopped")
	})
}

func (q *Queue) runWorker(ctx context.Context, id int) {
	defer q.wg.Done()

	logrus.Debugf("[TASK_QUEUE] Worker %d started", id)
	for {
		select {
		case job := <-q.pending:
			q.execute(ctx, id, job)
		case <-q.stopCh:
			// Drain whatever is already queued before leaving.
			for {
				select {
				case job := <-q.pending:
					q.execute(ctx, id, job)
				default:
					logrus.Debugf("[TASK_QUEUE] Worker %d shutting down", id)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// execute drives one job through Running to a terminal state. The claim is
// atomic; a job that lost its claim (already claimed, or removed) is skipped.
func (q *Queue) execute(ctx context.Context, workerID int, job *Job) {
	claimed, ok := q.registry.claim(job.ID)
	if !ok {
		return
	}

	handle := &Handle{job: claimed, ctx: ctx}

	// A cancellation issued while the job sat in the queue takes effect
	// before any work happens.
	if claimed.canceled.Load() {
		q.registry.finish(claimed.ID, StatusCanceled, "", "")
		logrus.Infof("[TASK_QUEUE] Worker %d: job %s canceled before start", workerID, claimed.ID)
		return
	}

	result, err := q.runGuarded(ctx, claimed, handle)
	switch {
	case err == nil:
		q.registry.finish(claimed.ID, StatusCompleted, result, "")
	case err == ErrCanceled:
		q.registry.finish(claimed.ID, StatusCanceled, result, "")
		logrus.Infof("[TASK_QUEUE] Worker %d: job %s canceled at %d%%",
			workerID, claimed.ID, claimed.progress.Load())
	default:
		q.registry.finish(claimed.ID, StatusFailed, "", err.Error())
		logrus.WithError(err).Errorf("[TASK_QUEUE] Worker %d: job %s (%s) failed",
			workerID, claimed.ID, claimed.Kind)
	}
}

// runGuarded invokes the job body with panic isolation, so a broken job
// cannot take a worker down with it.
func (q *Queue) runGuarded(ctx context.Context, job *Job, h *Handle) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.run(ctx, h)
}
