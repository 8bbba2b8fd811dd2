package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/goalsync/core/pkg/logger"
)

// SupervisorConfig tunes the supervisor's queues and sweeps.
type SupervisorConfig struct {
	DefaultMaxAttempts int
	DefaultBackoff     time.Duration
	DefaultTimeout     time.Duration
	Retention          time.Duration
	StalledAfter       time.Duration
	MaxDelayedAge      time.Duration
}

// DefaultSupervisorConfig returns the reference tuning.
func DefaultSupervisorConfig() *SupervisorConfig {
	return &SupervisorConfig{
		DefaultMaxAttempts: 3,
		DefaultBackoff:     2 * time.Second,
		DefaultTimeout:     10 * time.Minute,
		Retention:          24 * time.Hour,
		StalledAfter:       2 * time.Minute,
		MaxDelayedAge:      6 * time.Hour,
	}
}

// Supervisor owns every named queue, their workers, and a single cron
// scheduler driving recurring enqueues and the periodic cleanup sweep.
// All timers are owned here and stop as a group on Stop, so there are
// no ambient polling loops.
type Supervisor struct {
	mu     sync.Mutex
	queues map[string]*queue
	cron   *cron.Cron
	cfg    *SupervisorConfig
	logger *logger.Logger

	started bool
}

// NewSupervisor creates a supervisor with the given tuning.
func NewSupervisor(cfg *SupervisorConfig) *Supervisor {
	if cfg == nil {
		cfg = DefaultSupervisorConfig()
	}
	return &Supervisor{
		queues: make(map[string]*queue),
		cron:   cron.New(cron.WithLocation(time.UTC)),
		cfg:    cfg,
		logger: logger.New("queue-supervisor"),
	}
}

// Process registers the handler for a job type, creating its dedicated
// queue. Each job type runs in its own queue so a slow or failing type
// cannot starve another.
func (s *Supervisor) Process(jobType string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.queues[jobType]; exists {
		return fmt.Errorf("queue %s already registered", jobType)
	}

	q := newQueue(jobType, handler, s.cfg.DefaultMaxAttempts, s.cfg.DefaultBackoff, s.cfg.DefaultTimeout)
	s.queues[jobType] = q

	if s.started {
		go q.run()
	}

	s.logger.Info().
		Str("action", "queue_registered").
		Str("queue", jobType).
		Msg("Registered job queue")
	return nil
}

// Enqueue adds a job to the named queue.
func (s *Supervisor) Enqueue(jobType string, payload []byte, opts *Options) (uuid.UUID, error) {
	s.mu.Lock()
	q, ok := s.queues[jobType]
	s.mu.Unlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("no queue registered for job type %s", jobType)
	}

	id := q.enqueue(payload, opts)
	s.logger.Debug().
		Str("action", "job_enqueued").
		Str("queue", jobType).
		Str("job_id", id.String()).
		Msg("Job enqueued")
	return id, nil
}

// Schedule registers a recurring enqueue of the given job type on a
// cron expression. The payload is built fresh at each firing so it can
// carry dispatch-time context.
func (s *Supervisor) Schedule(jobType, spec string, buildPayload func() ([]byte, *Options)) error {
	_, err := s.cron.AddFunc(spec, func() {
		payload, opts := buildPayload()
		if _, err := s.Enqueue(jobType, payload, opts); err != nil {
			s.logger.Error().
				Err(err).
				Str("action", "scheduled_enqueue_failed").
				Str("queue", jobType).
				Msg("Scheduled enqueue failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobType, err)
	}

	s.logger.Info().
		Str("action", "schedule_registered").
		Str("queue", jobType).
		Str("schedule", spec).
		Msg("Registered recurring enqueue")
	return nil
}

// Start launches all queue workers, the stall sweep, and the cleanup
// sweep.
func (s *Supervisor) Start() {
	s.mu.Lock()
	s.started = true
	for _, q := range s.queues {
		go q.run()
	}
	count := len(s.queues)
	s.mu.Unlock()

	// Sweeps ride the same scheduler as the recurring enqueues.
	_, _ = s.cron.AddFunc("@every 1m", s.sweep)

	s.cron.Start()
	s.logger.Info().
		Str("action", "supervisor_started").
		Int("queues", count).
		Msg("Queue supervisor started")
}

// Stop halts the scheduler and shuts down every worker, waiting for
// in-flight jobs to finish.
func (s *Supervisor) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	queues := make([]*queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.started = false
	s.mu.Unlock()

	for _, q := range queues {
		q.shutdown()
	}

	s.logger.Info().
		Str("action", "supervisor_stopped").
		Msg("Queue supervisor stopped")
}

// sweep rescues stalled jobs and prunes old records on every queue.
func (s *Supervisor) sweep() {
	s.mu.Lock()
	queues := make([]*queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		requeued := q.requeueStalled(s.cfg.StalledAfter)
		removed := q.cleanup(s.cfg.Retention, s.cfg.MaxDelayedAge)
		if requeued > 0 || removed > 0 {
			s.logger.Debug().
				Str("action", "sweep").
				Str("queue", q.name).
				Int("stalled_requeued", requeued).
				Int("records_removed", removed).
				Msg("Queue sweep completed")
		}
	}
}

// JobCounts returns the per-state tally for one queue.
func (s *Supervisor) JobCounts(jobType string) (Counts, error) {
	s.mu.Lock()
	q, ok := s.queues[jobType]
	s.mu.Unlock()
	if !ok {
		return Counts{}, fmt.Errorf("no queue registered for job type %s", jobType)
	}
	return q.counts(), nil
}

// JobsByState returns copies of the jobs in the given state.
func (s *Supervisor) JobsByState(jobType string, state State) ([]*Job, error) {
	s.mu.Lock()
	q, ok := s.queues[jobType]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no queue registered for job type %s", jobType)
	}
	return q.jobsByState(state), nil
}

// QueueNames lists the registered queues.
func (s *Supervisor) QueueNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	return names
}
