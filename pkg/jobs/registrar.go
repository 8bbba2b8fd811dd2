package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/queue"
	"github.com/goalsync/core/pkg/services"
)

// Registrar wires refresh jobs into the queue supervisor. Each job gets
// a dedicated named queue plus a cron schedule that enqueues a freshly
// built job context at every firing.
type Registrar struct {
	supervisor *queue.Supervisor
	contexts   *services.ContextService
	jobs       map[models.RefreshType]Job
	logger     *logger.Logger
}

// NewRegistrar creates a registrar over the supervisor and context
// builder.
func NewRegistrar(supervisor *queue.Supervisor, contexts *services.ContextService) *Registrar {
	return &Registrar{
		supervisor: supervisor,
		contexts:   contexts,
		jobs:       make(map[models.RefreshType]Job),
		logger:     logger.New("registrar"),
	}
}

// Register binds a job to its queue and schedule. Must be called before
// the supervisor starts.
func (r *Registrar) Register(job Job) error {
	if _, exists := r.jobs[job.Type()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	if err := r.supervisor.Process(job.Name(), r.handlerFor(job)); err != nil {
		return fmt.Errorf("register worker for %s: %w", job.Name(), err)
	}

	if err := r.supervisor.Schedule(job.Name(), job.Schedule(), r.payloadBuilderFor(job)); err != nil {
		return fmt.Errorf("register schedule for %s: %w", job.Name(), err)
	}

	r.jobs[job.Type()] = job

	r.logger.Info().
		Str("job_name", job.Name()).
		Str("schedule", job.Schedule()).
		Str("action", "job_registered").
		Msg("Registered refresh job")

	return nil
}

// RegisterAll registers every job, stopping at the first failure.
func (r *Registrar) RegisterAll(jobs []Job) error {
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// Trigger enqueues a one-off run of the given refresh type outside its
// schedule. Used by the HTTP trigger endpoint.
func (r *Registrar) Trigger(ctx context.Context, refreshType models.RefreshType, overrides *services.ContextOverrides) (uuid.UUID, error) {
	job, ok := r.jobs[refreshType]
	if !ok {
		return uuid.Nil, fmt.Errorf("unknown refresh type %s", refreshType)
	}

	jobCtx, err := r.contexts.BuildContext(ctx, refreshType, "manual", overrides)
	if err != nil {
		return uuid.Nil, fmt.Errorf("build context for %s: %w", refreshType, err)
	}

	payload, err := json.Marshal(jobCtx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal context for %s: %w", refreshType, err)
	}

	return r.supervisor.Enqueue(job.Name(), payload, &queue.Options{
		Priority: jobCtx.Priority,
	})
}

// handlerFor adapts a refresh job into a queue handler. A failed
// execution returns the error so the queue applies its retry policy.
func (r *Registrar) handlerFor(job Job) queue.Handler {
	return func(ctx context.Context, qj *queue.Job) error {
		var jobCtx services.JobContext
		if len(qj.Payload) > 0 {
			if err := json.Unmarshal(qj.Payload, &jobCtx); err != nil {
				// A corrupt payload will not fix itself on retry.
				r.logger.Error().
					Err(err).
					Str("job_name", job.Name()).
					Str("action", "payload_decode_error").
					Msg("Dropping job with undecodable payload")
				return nil
			}
		}

		log := logger.New("refresh").
			WithRequestID(qj.ID.String()).
			WithJob(job.Name())
		if jobCtx.Regime != "" {
			log = log.WithRegime(string(jobCtx.Regime))
		}

		log.LogJobStart(job.Name(), job.Schedule())
		start := time.Now()

		result, err := job.Execute(log.ToContext(ctx))
		duration := time.Since(start)

		if err != nil {
			log.Error().
				Err(err).
				Str("action", "refresh_failed").
				Int("attempt", qj.Attempt).
				Dur("duration", duration).
				Msg("Refresh job failed")
			return err
		}

		items := 0
		if result != nil {
			if n, ok := result.Details["rows_affected"].(int); ok {
				items = n
			}
			log.Info().
				Str("action", "refresh_state").
				Str("state", result.State).
				Msg("Refresh job finished")
		}
		log.LogJobComplete(job.Name(), duration, items, 0)
		return nil
	}
}

// payloadBuilderFor builds a fresh scheduler payload at each cron
// firing so regime and priority reflect the moment of enqueue, not the
// moment of registration.
func (r *Registrar) payloadBuilderFor(job Job) func() ([]byte, *queue.Options) {
	return func() ([]byte, *queue.Options) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		jobCtx, err := r.contexts.BuildContext(ctx, job.Type(), "scheduler", nil)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("job_name", job.Name()).
				Str("action", "context_build_failed").
				Msg("Enqueueing without job context")
			return nil, nil
		}

		payload, err := json.Marshal(jobCtx)
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("job_name", job.Name()).
				Str("action", "context_marshal_failed").
				Msg("Enqueueing without job context")
			return nil, nil
		}

		return payload, &queue.Options{Priority: jobCtx.Priority}
	}
}
