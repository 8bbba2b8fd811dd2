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
	"github.com/goalsync/core/pkg/utils"
)

// BootstrapService keeps the bootstrap-static resource (teams, players,
// gameweeks) synchronized. The bootstrap payload is large and fetched on
// every cycle but changes infrequently, so the byte-level diff against
// the cached copy is the central cost control: an unchanged snapshot
// performs zero writes.
type BootstrapService struct {
	client    Fetcher
	cache     Cache
	db        Store
	states    *StateService
	batchSize int
	logger    *logger.Logger
}

func NewBootstrapService(client Fetcher, cacheStore Cache, db Store, states *StateService, batchSize int) *BootstrapService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BootstrapService{
		client:    client,
		cache:     cacheStore,
		db:        db,
		states:    states,
		batchSize: batchSize,
		logger:    logger.New("bootstrap-service"),
	}
}

// Sync fetches the bootstrap snapshot and writes through only on change.
func (s *BootstrapService) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	snapshot, raw, err := s.client.GetBootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap fetch failed: %w", err)
	}

	if cached, ok := s.cache.Get(cache.KeyBootstrap()); ok && bytes.Equal(cached, raw) {
		s.logger.LogSyncResult(string(models.ResourceBootstrap), false, 0, time.Since(start))
		return &SyncResult{Changed: false}, nil
	}

	regime := s.states.Regime(ctx)
	result := &SyncResult{Changed: true}

	result.RowsAffected += s.upsertTeams(ctx, snapshot.Teams, result)
	result.RowsAffected += s.upsertPlayers(ctx, snapshot.Elements, result)
	result.RowsAffected += s.upsertGameweeks(ctx, snapshot.Events, result)

	// Cache the new snapshot only after the store writes, so a crashed
	// sync re-runs the whole pass instead of seeing a false no-diff. A
	// partial pass is not cached at all: the failed rows must be retried
	// on the next cycle, not after the TTL.
	if result.BatchErrors == 0 {
		s.cache.Set(cache.KeyBootstrap(), raw, cache.TTLFor(models.ResourceBootstrap, regime))
	}

	// Derived views of the raw bootstrap are now stale.
	removed := s.cache.InvalidatePattern(cache.PatternEnrichedPlayers())
	s.logger.LogCacheInvalidation(cache.PatternEnrichedPlayers(), removed, "bootstrap_changed")

	s.scheduleDeadlineInvalidations(snapshot.Events)

	s.logger.LogSyncResult(string(models.ResourceBootstrap), true, result.RowsAffected, time.Since(start))
	return result, nil
}

func (s *BootstrapService) upsertTeams(ctx context.Context, teams []models.TeamSnapshot, result *SyncResult) int {
	rows := 0
	for _, t := range teams {
		err := s.db.UpsertTeam(ctx, database.UpsertTeamParams{
			ID:        t.ID,
			Name:      t.Name,
			ShortName: t.ShortName,
			Slug:      utils.GenerateTeamSlug(t.Name),
			Strength:  t.Strength,
		})
		if err != nil {
			result.BatchErrors++
			s.logger.Error().
				Err(err).
				Int("team_id", t.ID).
				Str("action", "team_upsert_failed").
				Msg("Failed to upsert team")
			continue
		}
		rows++
	}
	return rows
}

func (s *BootstrapService) upsertPlayers(ctx context.Context, players []models.PlayerSnapshot, result *SyncResult) int {
	rows := 0
	for batchStart := 0; batchStart < len(players); batchStart += s.batchSize {
		end := batchStart + s.batchSize
		if end > len(players) {
			end = len(players)
		}

		batchRows, err := s.upsertPlayerBatch(ctx, players[batchStart:end])
		rows += batchRows
		if err != nil {
			// One failed batch does not abort its siblings.
			result.BatchErrors++
			s.logger.Error().
				Err(err).
				Int("batch_start", batchStart).
				Int("batch_size", end-batchStart).
				Str("action", "player_batch_failed").
				Msg("Player upsert batch failed")
		}
	}
	return rows
}

func (s *BootstrapService) upsertPlayerBatch(ctx context.Context, players []models.PlayerSnapshot) (int, error) {
	rows := 0
	for _, p := range players {
		err := s.db.UpsertPlayer(ctx, database.UpsertPlayerParams{
			ID:          p.ID,
			TeamID:      p.TeamID,
			FirstName:   p.FirstName,
			SecondName:  p.SecondName,
			WebName:     p.WebName,
			Slug:        utils.GeneratePlayerSlug(p.FirstName, p.SecondName, p.ID),
			ElementType: p.ElementType,
			NowCost:     p.NowCost,
			TotalPoints: p.TotalPoints,
			Status:      p.Status,
		})
		if err != nil {
			return rows, fmt.Errorf("failed to upsert player %d: %w", p.ID, err)
		}
		rows++

		if err := s.db.UpsertPlayerSeasonStat(ctx, database.UpsertPlayerSeasonStatParams{
			PlayerID:    p.ID,
			TotalPoints: p.TotalPoints,
			NowCost:     p.NowCost,
			Form:        p.Form,
		}); err != nil {
			return rows, fmt.Errorf("failed to upsert season stats for player %d: %w", p.ID, err)
		}
	}
	return rows, nil
}

func (s *BootstrapService) upsertGameweeks(ctx context.Context, gameweeks []models.GameweekSnapshot, result *SyncResult) int {
	rows := 0
	for _, gw := range gameweeks {
		err := s.db.UpsertGameweek(ctx, database.UpsertGameweekParams{
			ID:           gw.ID,
			Name:         gw.Name,
			DeadlineTime: gw.DeadlineTime,
			IsCurrent:    gw.IsCurrent,
			IsNext:       gw.IsNext,
			Finished:     gw.Finished,
		})
		if err != nil {
			result.BatchErrors++
			s.logger.Error().
				Err(err).
				Int("gameweek_id", gw.ID).
				Str("action", "gameweek_upsert_failed").
				Msg("Failed to upsert gameweek")
			continue
		}
		rows++
	}
	return rows
}

// scheduleDeadlineInvalidations arranges for cached next-gameweek data
// to expire at each future deadline. Schedules are process-local, so
// every full bootstrap refresh re-establishes them.
func (s *BootstrapService) scheduleDeadlineInvalidations(gameweeks []models.GameweekSnapshot) {
	now := time.Now()
	scheduled := 0
	var nextDeadline *time.Time
	for _, gw := range gameweeks {
		if gw.DeadlineTime == nil || !gw.DeadlineTime.After(now) {
			continue
		}
		s.cache.ScheduleInvalidation(cache.KeyGameweekFixtures(gw.ID), *gw.DeadlineTime)
		if nextDeadline == nil || gw.DeadlineTime.Before(*nextDeadline) {
			d := *gw.DeadlineTime
			nextDeadline = &d
		}
		scheduled++
	}

	// The raw bootstrap must not outlive the nearest deadline: current
	// and next flags flip at that instant.
	if nextDeadline != nil {
		s.cache.ScheduleInvalidation(cache.KeyBootstrap(), *nextDeadline)
	}

	if scheduled > 0 {
		s.logger.Debug().
			Int("gameweeks", scheduled).
			Str("action", "deadline_invalidations_scheduled").
			Msg("Scheduled cache invalidations at gameweek deadlines")
	}
}
