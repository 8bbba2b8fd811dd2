package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/services"
)

// GuardedJobConfig controls lock acquisition behavior.
type GuardedJobConfig struct {
	LockTimeout  time.Duration // how long to wait for the advisory lock
	SkipIfLocked bool          // treat a held lock as a successful no-op
}

// DefaultGuardedJobConfig returns the defaults used by the scheduler.
// Skipping when locked is the right call for recurring refreshes: the
// instance holding the lock is already doing the work, and the next
// firing will catch up.
func DefaultGuardedJobConfig() *GuardedJobConfig {
	return &GuardedJobConfig{
		LockTimeout:  30 * time.Second,
		SkipIfLocked: true,
	}
}

// GuardedJob wraps a refresh job with a database advisory lock so that
// concurrent schedulers (or an overlapping manual trigger) never run
// the same refresh type at once. Retry on failure is the queue's
// responsibility, not the guard's.
type GuardedJob struct {
	job         Job
	lockManager JobLockManager
	logger      *logger.Logger

	lockTimeout  time.Duration
	skipIfLocked bool
}

// NewGuardedJob wraps job with distributed locking.
func NewGuardedJob(job Job, lockManager JobLockManager, config *GuardedJobConfig) *GuardedJob {
	if config == nil {
		config = DefaultGuardedJobConfig()
	}

	return &GuardedJob{
		job:          job,
		lockManager:  lockManager,
		logger:       logger.New("guarded-job"),
		lockTimeout:  config.LockTimeout,
		skipIfLocked: config.SkipIfLocked,
	}
}

// Execute acquires the advisory lock for the job name, runs the
// underlying job, and releases the lock.
func (g *GuardedJob) Execute(ctx context.Context) (*services.RefreshResult, error) {
	jobName := g.job.Name()

	lockGuard := NewLockGuard(g.lockManager, jobName)

	var acquired bool
	var err error

	if g.lockTimeout > 0 {
		acquired, err = lockGuard.AcquireWithTimeout(ctx, g.lockTimeout)
	} else {
		acquired, err = lockGuard.Acquire(ctx)
	}

	if err != nil {
		g.logger.Error().
			Err(err).
			Str("job_name", jobName).
			Str("action", "lock_acquisition_error").
			Msg("Failed to acquire advisory lock")
		return nil, fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	if !acquired {
		if g.skipIfLocked {
			g.logger.Info().
				Str("job_name", jobName).
				Str("action", "job_skipped_locked").
				Msg("Job skipped, another instance is running")
			return &services.RefreshResult{
				Refreshed: false,
				State:     "skipped",
				Details:   map[string]any{"reason": "already_running"},
			}, nil
		}
		return nil, fmt.Errorf("could not acquire lock for job %s within timeout", jobName)
	}

	defer func() {
		if releaseErr := lockGuard.Release(ctx); releaseErr != nil {
			g.logger.Error().
				Err(releaseErr).
				Str("job_name", jobName).
				Str("action", "lock_release_error").
				Msg("Failed to release advisory lock")
		}
	}()

	return g.job.Execute(ctx)
}

func (g *GuardedJob) Type() models.RefreshType {
	return g.job.Type()
}

func (g *GuardedJob) Name() string {
	return g.job.Name()
}

func (g *GuardedJob) Schedule() string {
	return g.job.Schedule()
}
