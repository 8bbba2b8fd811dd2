package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TriggerResponse is returned by the manual refresh endpoints. Triggers
// always answer with a JSON envelope, even on failure, so callers can
// distinguish "the refresh failed" from "the service is down".
type TriggerResponse struct {
	Success   bool           `json:"success"`
	JobID     string         `json:"job_id,omitempty"`
	Refreshed bool           `json:"refreshed"`
	State     string         `json:"state,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QueueCountsResponse reports per-queue job counts.
type QueueCountsResponse struct {
	Queues    map[string]QueueCounts `json:"queues"`
	Timestamp time.Time              `json:"timestamp"`
}

// QueueCounts mirrors the queue's per-state tallies.
type QueueCounts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stalled   int `json:"stalled"`
}

// QueueJobResponse is a read-only view of a queued job.
type QueueJobResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	State      string     `json:"state"`
	Priority   int        `json:"priority"`
	Attempt    int        `json:"attempt"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	RunAt      time.Time  `json:"run_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
