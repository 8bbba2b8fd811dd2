package jobs

import (
	"context"

	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/services"
)

// Job represents a typed refresh job dispatched through the queue
// supervisor.
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) (*services.RefreshResult, error)

	// Type returns the refresh type this job performs
	Type() models.RefreshType

	// Name returns a human-readable name for the job; it doubles as
	// the queue name
	Name() string

	// Schedule returns the cron schedule expression for this job
	// Format: "minute hour day month weekday" or "@every duration"
	Schedule() string
}
