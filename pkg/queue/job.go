package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a queued job.
// waiting -> active -> (completed | failed), with stalled as a transient
// state for jobs whose worker died mid-execution.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateStalled   State = "stalled"
)

// Job is one queued unit of work. Records are kept after completion for
// introspection until the cleanup sweep removes them.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	State       State
	Priority    int
	Attempt     int
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	EnqueuedAt    time.Time
	RunAt         time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	LastHeartbeat *time.Time
	LastError     string

	// stalledRequeues bounds how often a stalled job is given another
	// chance before it is failed outright.
	stalledRequeues int
}

// Options tune one enqueue. Zero values fall back to queue defaults.
type Options struct {
	Priority    int
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
	Delay       time.Duration
}

// Handler executes one job. A returned error triggers the queue's
// retry/backoff machinery.
type Handler func(ctx context.Context, job *Job) error

// Counts is a per-state job tally for one queue.
type Counts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stalled   int `json:"stalled"`
}

// backoffForAttempt computes the exponential retry delay after the given
// (1-based) failed attempt.
func backoffForAttempt(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return delay
}
