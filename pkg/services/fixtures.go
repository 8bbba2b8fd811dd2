package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
)

// FixturesService keeps the fixtures resource synchronized and performs
// targeted invalidation when fixtures finish, since finished fixtures
// shift the regime classification and live-stat dependencies.
type FixturesService struct {
	client Fetcher
	cache  Cache
	db     Store
	states *StateService
	logger *logger.Logger
}

func NewFixturesService(client Fetcher, cacheStore Cache, db Store, states *StateService) *FixturesService {
	return &FixturesService{
		client: client,
		cache:  cacheStore,
		db:     db,
		states: states,
		logger: logger.New("fixtures-service"),
	}
}

// Sync fetches the fixtures snapshot and writes through only on change.
func (s *FixturesService) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	snapshot, raw, err := s.client.GetFixtures(ctx)
	if err != nil {
		return nil, fmt.Errorf("fixtures fetch failed: %w", err)
	}

	if cached, ok := s.cache.Get(cache.KeyFixtures()); ok && bytes.Equal(cached, raw) {
		s.logger.LogSyncResult(string(models.ResourceFixtures), false, 0, time.Since(start))
		return &SyncResult{Changed: false}, nil
	}

	// Snapshot the pre-write finished set so newly finished fixtures can
	// be detected after the upsert pass.
	finishedBefore := make(map[int]bool)
	if existing, err := s.db.ListFixtures(ctx); err == nil {
		for _, f := range existing {
			finishedBefore[f.ID] = f.Finished
		}
	}

	result := &SyncResult{Changed: true}
	newlyFinishedGameweeks := make(map[int]struct{})

	for _, f := range snapshot.Fixtures {
		err := s.db.UpsertFixture(ctx, database.UpsertFixtureParams{
			ID:          f.ID,
			GameweekID:  f.GameweekID,
			HomeTeamID:  f.HomeTeamID,
			AwayTeamID:  f.AwayTeamID,
			KickoffTime: f.KickoffTime,
			Finished:    f.Finished,
			HomeScore:   f.HomeScore,
			AwayScore:   f.AwayScore,
		})
		if err != nil {
			result.BatchErrors++
			s.logger.Error().
				Err(err).
				Int("fixture_id", f.ID).
				Str("action", "fixture_upsert_failed").
				Msg("Failed to upsert fixture")
			continue
		}
		result.RowsAffected++

		if f.Finished && !finishedBefore[f.ID] && f.GameweekID != nil {
			newlyFinishedGameweeks[*f.GameweekID] = struct{}{}
		}
	}

	// A partial pass stays uncached so the failed fixtures are retried on
	// the next cycle.
	if result.BatchErrors == 0 {
		regime := s.states.Regime(ctx)
		s.cache.Set(cache.KeyFixtures(), raw, cache.TTLFor(models.ResourceFixtures, regime))
	}

	// A fixture finishing makes that gameweek's live-stat cache stale.
	for gameweekID := range newlyFinishedGameweeks {
		removed := s.cache.InvalidatePattern(cache.PatternGameweek(gameweekID))
		s.logger.LogCacheInvalidation(cache.PatternGameweek(gameweekID), removed, "fixture_finished")
	}

	s.logger.LogSyncResult(string(models.ResourceFixtures), true, result.RowsAffected, time.Since(start))
	return result, nil
}
