package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goalsync/core/pkg/logger"
)

// jobHeap orders waiting jobs by (priority, enqueue time). Lower
// priority values run first.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// queue is one named job queue with a single worker. One in-flight job
// at a time keeps the load on the upstream API and the store
// predictable; isolation between queues keeps a stuck job type from
// starving the others.
type queue struct {
	name    string
	handler Handler

	mu      sync.Mutex
	waiting jobHeap
	records map[uuid.UUID]*Job

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}

	defaultMaxAttempts int
	defaultBackoff     time.Duration
	defaultTimeout     time.Duration

	logger *logger.Logger
}

func newQueue(name string, handler Handler, maxAttempts int, backoff, timeout time.Duration) *queue {
	q := &queue{
		name:               name,
		handler:            handler,
		records:            make(map[uuid.UUID]*Job),
		notify:             make(chan struct{}, 1),
		stop:               make(chan struct{}),
		done:               make(chan struct{}),
		defaultMaxAttempts: maxAttempts,
		defaultBackoff:     backoff,
		defaultTimeout:     timeout,
		logger:             logger.New("queue").WithJob(name),
	}
	heap.Init(&q.waiting)
	return q
}

func (q *queue) enqueue(payload []byte, opts *Options) uuid.UUID {
	job := &Job{
		ID:          uuid.New(),
		Type:        q.name,
		Payload:     payload,
		State:       StateWaiting,
		MaxAttempts: q.defaultMaxAttempts,
		Backoff:     q.defaultBackoff,
		Timeout:     q.defaultTimeout,
		EnqueuedAt:  time.Now(),
		RunAt:       time.Now(),
	}

	if opts != nil {
		job.Priority = opts.Priority
		if opts.MaxAttempts > 0 {
			job.MaxAttempts = opts.MaxAttempts
		}
		if opts.Backoff > 0 {
			job.Backoff = opts.Backoff
		}
		if opts.Timeout > 0 {
			job.Timeout = opts.Timeout
		}
		if opts.Delay > 0 {
			job.RunAt = job.RunAt.Add(opts.Delay)
		}
	}

	q.mu.Lock()
	q.records[job.ID] = job
	heap.Push(&q.waiting, job)
	q.mu.Unlock()

	q.wake()
	return job.ID
}

func (q *queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// run is the worker loop: pop the highest-priority ready job, execute it
// with a bounded timeout, ack or retry.
func (q *queue) run() {
	defer close(q.done)

	for {
		job, wait := q.nextReady()
		if job == nil {
			timer := time.NewTimer(wait)
			select {
			case <-q.stop:
				timer.Stop()
				return
			case <-q.notify:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		q.execute(job)

		select {
		case <-q.stop:
			return
		default:
		}
	}
}

// nextReady pops the best runnable job, or returns how long to wait for
// the earliest delayed one.
func (q *queue) nextReady() (*Job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	wait := time.Minute

	// Skim delayed jobs off the top without losing heap order: pop,
	// and re-push any that are not yet runnable.
	var deferred []*Job
	var ready *Job
	for q.waiting.Len() > 0 {
		job := heap.Pop(&q.waiting).(*Job)
		if job.State != StateWaiting {
			// Failed by a sweep while still heaped; drop it.
			continue
		}
		if job.RunAt.After(now) {
			deferred = append(deferred, job)
			if until := time.Until(job.RunAt); until < wait {
				wait = until
			}
			continue
		}
		ready = job
		break
	}
	for _, job := range deferred {
		heap.Push(&q.waiting, job)
	}

	if ready == nil {
		return nil, wait
	}

	// Attempt is bumped here, under the lock, so introspection readers
	// never race the worker.
	started := time.Now()
	ready.State = StateActive
	ready.Attempt++
	ready.StartedAt = &started
	ready.LastHeartbeat = &started
	return ready, 0
}

func (q *queue) execute(job *Job) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if job.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Heartbeat while the handler runs so the stall sweep can tell a
	// slow job from a dead one. The heartbeat stops when the job's
	// deadline passes, so a handler that ignores cancellation goes
	// quiet and the sweep rescues the job.
	hbStop := make(chan struct{})
	go q.heartbeat(ctx, job, hbStop)

	start := time.Now()
	q.logger.Info().
		Str("action", "job_execute").
		Str("job_id", job.ID.String()).
		Int("attempt", job.Attempt).
		Int("priority", job.Priority).
		Msg("Executing queued job")

	err := q.handler(ctx, job)
	close(hbStop)

	q.mu.Lock()
	defer q.mu.Unlock()

	// The stall sweep may have already re-queued or failed this job
	// while a hung handler was draining; its verdict stands.
	if job.State != StateActive {
		return
	}

	finished := time.Now()
	if err == nil {
		job.State = StateCompleted
		job.FinishedAt = &finished
		q.logger.Info().
			Str("action", "job_completed").
			Str("job_id", job.ID.String()).
			Dur("duration", finished.Sub(start)).
			Msg("Queued job completed")
		return
	}

	job.LastError = err.Error()

	if job.Attempt < job.MaxAttempts {
		delay := backoffForAttempt(job.Backoff, job.Attempt)
		job.State = StateWaiting
		job.RunAt = time.Now().Add(delay)
		heap.Push(&q.waiting, job)
		q.logger.Warn().
			Err(err).
			Str("action", "job_retry_scheduled").
			Str("job_id", job.ID.String()).
			Int("attempt", job.Attempt).
			Int("max_attempts", job.MaxAttempts).
			Dur("backoff", delay).
			Msg("Job failed, retry scheduled")
		return
	}

	job.State = StateFailed
	job.FinishedAt = &finished
	q.logger.Error().
		Err(err).
		Str("action", "job_failed").
		Str("job_id", job.ID.String()).
		Int("attempt", job.Attempt).
		Msg("Job failed permanently")
}

func (q *queue) heartbeat(ctx context.Context, job *Job, stop chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			q.mu.Lock()
			job.LastHeartbeat = &now
			q.mu.Unlock()
		}
	}
}

// requeueStalled re-queues active jobs whose heartbeat has gone quiet.
// A job is only rescued once; a second stall fails it.
func (q *queue) requeueStalled(staleAfter time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	requeued := 0
	for _, job := range q.records {
		if job.State != StateActive || job.LastHeartbeat == nil {
			continue
		}
		if now.Sub(*job.LastHeartbeat) < staleAfter {
			continue
		}

		job.State = StateStalled
		if job.stalledRequeues >= 1 {
			job.State = StateFailed
			finished := now
			job.FinishedAt = &finished
			job.LastError = "stalled twice, giving up"
			q.logger.Error().
				Str("action", "job_stalled_failed").
				Str("job_id", job.ID.String()).
				Msg("Job stalled twice, failing permanently")
			continue
		}

		job.stalledRequeues++
		job.State = StateWaiting
		job.RunAt = now
		heap.Push(&q.waiting, job)
		requeued++
		q.logger.Warn().
			Str("action", "job_stalled_requeued").
			Str("job_id", job.ID.String()).
			Msg("Stalled job re-queued")
	}

	if requeued > 0 {
		q.wake()
	}
	return requeued
}

// cleanup removes terminal job records older than the retention window
// and fails delayed jobs stuck waiting beyond maxDelayedAge.
func (q *queue) cleanup(retention, maxDelayedAge time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, job := range q.records {
		switch job.State {
		case StateCompleted, StateFailed:
			if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > retention {
				delete(q.records, id)
				removed++
			}
		case StateWaiting:
			if now.Sub(job.EnqueuedAt) > maxDelayedAge {
				job.State = StateFailed
				finished := now
				job.FinishedAt = &finished
				job.LastError = "aged out while delayed"
			}
		}
	}
	return removed
}

func (q *queue) counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c Counts
	for _, job := range q.records {
		switch job.State {
		case StateWaiting:
			c.Waiting++
		case StateActive:
			c.Active++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		case StateStalled:
			c.Stalled++
		}
	}
	return c
}

func (q *queue) jobsByState(state State) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var jobs []*Job
	for _, job := range q.records {
		if job.State == state {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	return jobs
}

func (q *queue) shutdown() {
	close(q.stop)
	<-q.done
}
