package services

import (
	"context"
	"time"

	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/models"
)

// Fetcher is the upstream snapshot surface the sync engine consumes.
// Satisfied by *upstream.Client; test fakes implement it directly.
type Fetcher interface {
	GetBootstrap(ctx context.Context) (*models.BootstrapSnapshot, []byte, error)
	GetFixtures(ctx context.Context) (*models.FixturesSnapshot, []byte, error)
	GetLiveGameweek(ctx context.Context, gameweekID int) (*models.LiveGameweekSnapshot, []byte, error)
	GetPlayerDetail(ctx context.Context, playerID int) (*models.PlayerDetailSnapshot, []byte, error)
}

// Store is the persistent-store surface the sync engine writes through.
// Satisfied by *database.Queries.
type Store interface {
	UpsertTeam(ctx context.Context, params database.UpsertTeamParams) error
	UpsertPlayer(ctx context.Context, params database.UpsertPlayerParams) error
	UpsertGameweek(ctx context.Context, params database.UpsertGameweekParams) error
	UpsertFixture(ctx context.Context, params database.UpsertFixtureParams) error
	UpsertPlayerGameweekStat(ctx context.Context, params database.UpsertPlayerGameweekStatParams) error
	UpsertPlayerSeasonStat(ctx context.Context, params database.UpsertPlayerSeasonStatParams) error
	MarkGameweekStatsSynced(ctx context.Context, gameweekID int) error
	ResetGameweekStatsSynced(ctx context.Context, gameweekID int) error
	ListGameweeks(ctx context.Context) ([]models.Gameweek, error)
	GetCurrentGameweek(ctx context.Context) (*models.Gameweek, error)
	ListUnsyncedFinishedGameweeks(ctx context.Context) ([]models.Gameweek, error)
	ListFixtures(ctx context.Context) ([]models.Fixture, error)
	InsertRefreshLog(ctx context.Context, params database.InsertRefreshLogParams) error
	LatestRefreshLog(ctx context.Context, refreshType models.RefreshType, states []string) (*models.RefreshLogRecord, error)
	SetSystemMeta(ctx context.Context, key, value string) error
	GetSystemMeta(ctx context.Context, key string) (string, error)
}

// Cache is the key-value cache surface. Satisfied by *cache.Store.
// Cache failures are non-fatal everywhere: reads fall through to the
// upstream and write errors are swallowed.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Invalidate(key string)
	InvalidatePattern(pattern string) int
	ScheduleInvalidation(key string, at time.Time)
}

// SyncResult summarizes one diff-then-write pass over a resource.
type SyncResult struct {
	Changed      bool `json:"changed"`
	RowsAffected int  `json:"rows_affected"`
	BatchErrors  int  `json:"batch_errors"`
}
