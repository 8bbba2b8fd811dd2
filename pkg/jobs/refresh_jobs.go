package jobs

import (
	"context"

	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/services"
)

// refreshJob binds a refresh type to its schedule and the façade method
// performing it. All five job kinds share this shape; cadence and
// refresh semantics are the only differences.
type refreshJob struct {
	refreshType models.RefreshType
	schedule    string
	perform     func(ctx context.Context) (*services.RefreshResult, error)
}

func (j *refreshJob) Execute(ctx context.Context) (*services.RefreshResult, error) {
	return j.perform(ctx)
}

func (j *refreshJob) Type() models.RefreshType {
	return j.refreshType
}

func (j *refreshJob) Name() string {
	return string(j.refreshType)
}

func (j *refreshJob) Schedule() string {
	return j.schedule
}

// NewBootstrapSyncJob refreshes the bootstrap-static resource. The
// payload barely changes outside deadlines, so every 6 hours is enough;
// the diff check makes the wasted fetches cheap.
func NewBootstrapSyncJob(refresh *services.RefreshService) Job {
	return &refreshJob{
		refreshType: models.RefreshBootstrap,
		schedule:    "0 */6 * * *",
		perform:     refresh.PerformBootstrapRefresh,
	}
}

// NewFixturesSyncJob refreshes fixtures. Every 15 minutes catches
// kickoff reschedules and score updates promptly.
func NewFixturesSyncJob(refresh *services.RefreshService) Job {
	return &refreshJob{
		refreshType: models.RefreshFixtures,
		schedule:    "*/15 * * * *",
		perform:     refresh.PerformFixturesRefresh,
	}
}

// NewLiveSyncJob refreshes live gameweek stats. Fires every 2 minutes;
// the refresh service skips it outside live and post-match windows.
func NewLiveSyncJob(refresh *services.RefreshService) Job {
	return &refreshJob{
		refreshType: models.RefreshLive,
		schedule:    "*/2 * * * *",
		perform:     refresh.PerformLiveRefresh,
	}
}

// NewGameweekStatsSyncJob runs the once-only finished-gameweek stats
// upsert. Hourly is plenty: the is_player_stats_synced flag makes
// repeats no-ops.
func NewGameweekStatsSyncJob(refresh *services.RefreshService) Job {
	return &refreshJob{
		refreshType: models.RefreshGameweekStats,
		schedule:    "30 * * * *",
		perform:     refresh.PerformGameweekStatsRefresh,
	}
}

// NewDailyRefreshJob chains the daily maintenance pass during the quiet
// early-morning window.
func NewDailyRefreshJob(refresh *services.RefreshService) Job {
	return &refreshJob{
		refreshType: models.RefreshDaily,
		schedule:    "0 4 * * *",
		perform:     refresh.PerformDailyRefresh,
	}
}

// AllJobs builds every refresh job over the shared façade.
func AllJobs(refresh *services.RefreshService) []Job {
	return []Job{
		NewBootstrapSyncJob(refresh),
		NewFixturesSyncJob(refresh),
		NewLiveSyncJob(refresh),
		NewGameweekStatsSyncJob(refresh),
		NewDailyRefreshJob(refresh),
	}
}
