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

// LiveService keeps the current gameweek's live per-player stats fresh
// while matches are in play.
type LiveService struct {
	client    Fetcher
	cache     Cache
	db        Store
	states    *StateService
	batchSize int
	logger    *logger.Logger
}

func NewLiveService(client Fetcher, cacheStore Cache, db Store, states *StateService, batchSize int) *LiveService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &LiveService{
		client:    client,
		cache:     cacheStore,
		db:        db,
		states:    states,
		batchSize: batchSize,
		logger:    logger.New("live-service"),
	}
}

// Sync fetches live stats for the current gameweek, writing through only
// on change. Returns a no-op result when no gameweek is current.
func (s *LiveService) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	current, err := s.db.GetCurrentGameweek(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up current gameweek: %w", err)
	}
	if current == nil {
		return &SyncResult{Changed: false}, nil
	}

	snapshot, raw, err := s.client.GetLiveGameweek(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("live fetch failed for gameweek %d: %w", current.ID, err)
	}

	key := cache.KeyLiveGameweek(current.ID)
	if cached, ok := s.cache.Get(key); ok && bytes.Equal(cached, raw) {
		s.logger.LogSyncResult(string(models.ResourceLiveGameweek), false, 0, time.Since(start))
		return &SyncResult{Changed: false}, nil
	}

	result := &SyncResult{Changed: true}
	result.RowsAffected = s.upsertLiveStats(ctx, current.ID, snapshot.Elements, result)

	// A partial pass stays uncached so the failed batches are retried on
	// the next cycle.
	if result.BatchErrors == 0 {
		regime := s.states.Regime(ctx)
		s.cache.Set(key, raw, cache.TTLFor(models.ResourceLiveGameweek, regime))
	}

	s.logger.LogSyncResult(string(models.ResourceLiveGameweek), true, result.RowsAffected, time.Since(start))
	return result, nil
}

func (s *LiveService) upsertLiveStats(ctx context.Context, gameweekID int, elements []models.LiveElement, result *SyncResult) int {
	rows := 0
	for batchStart := 0; batchStart < len(elements); batchStart += s.batchSize {
		end := batchStart + s.batchSize
		if end > len(elements) {
			end = len(elements)
		}

		batchRows, err := upsertStatBatch(ctx, s.db, gameweekID, elements[batchStart:end])
		rows += batchRows
		if err != nil {
			result.BatchErrors++
			s.logger.Error().
				Err(err).
				Int("gameweek_id", gameweekID).
				Int("batch_start", batchStart).
				Str("action", "live_batch_failed").
				Msg("Live stats upsert batch failed")
		}
	}
	return rows
}

// upsertStatBatch writes one chunk of per-player gameweek stats. Shared
// with the gameweek stats sync, which writes the same rows from the
// final snapshot.
func upsertStatBatch(ctx context.Context, db Store, gameweekID int, elements []models.LiveElement) (int, error) {
	rows := 0
	for _, e := range elements {
		err := db.UpsertPlayerGameweekStat(ctx, database.UpsertPlayerGameweekStatParams{
			PlayerID:    e.ID,
			GameweekID:  gameweekID,
			Minutes:     e.Stats.Minutes,
			GoalsScored: e.Stats.GoalsScored,
			Assists:     e.Stats.Assists,
			CleanSheets: e.Stats.CleanSheets,
			Bonus:       e.Stats.Bonus,
			BPS:         e.Stats.BPS,
			TotalPoints: e.Stats.TotalPoints,
		})
		if err != nil {
			return rows, fmt.Errorf("failed to upsert stats for player %d: %w", e.ID, err)
		}
		rows++
	}
	return rows, nil
}
