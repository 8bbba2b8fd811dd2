package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/logger"
)

// GameweekStatsService performs the once-only detailed player-statistics
// upsert for finished gameweeks. The is_player_stats_synced flag is the
// idempotence guard: it is set only after every batch for the gameweek
// succeeded, in the same logical operation's follow-up step, so any
// failure leaves the gameweek eligible for a wholesale retry.
type GameweekStatsService struct {
	client    Fetcher
	db        Store
	batchSize int
	logger    *logger.Logger
}

func NewGameweekStatsService(client Fetcher, db Store, batchSize int) *GameweekStatsService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GameweekStatsService{
		client:    client,
		db:        db,
		batchSize: batchSize,
		logger:    logger.New("gameweek-stats-service"),
	}
}

// GameweekStatsResult summarizes one finished-gameweek sync pass.
type GameweekStatsResult struct {
	GameweeksSynced []int `json:"gameweeks_synced"`
	GameweeksFailed []int `json:"gameweeks_failed"`
	RowsAffected    int   `json:"rows_affected"`
}

// SyncFinished upserts stats for every finished gameweek not yet marked
// synced. Failures are isolated per gameweek: one bad gameweek does not
// abort the rest of the pass.
func (s *GameweekStatsService) SyncFinished(ctx context.Context) (*GameweekStatsResult, error) {
	start := time.Now()

	pending, err := s.db.ListUnsyncedFinishedGameweeks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced gameweeks: %w", err)
	}

	result := &GameweekStatsResult{}
	for _, gw := range pending {
		rows, err := s.syncGameweek(ctx, gw.ID)
		result.RowsAffected += rows
		if err != nil {
			result.GameweeksFailed = append(result.GameweeksFailed, gw.ID)
			s.logger.Error().
				Err(err).
				Int("gameweek_id", gw.ID).
				Str("action", "gameweek_stats_failed").
				Msg("Gameweek stats sync failed, flag left unset for retry")
			continue
		}
		result.GameweeksSynced = append(result.GameweeksSynced, gw.ID)
	}

	s.logger.Info().
		Str("action", "gameweek_stats_complete").
		Int("synced", len(result.GameweeksSynced)).
		Int("failed", len(result.GameweeksFailed)).
		Int("rows_affected", result.RowsAffected).
		Dur("duration", time.Since(start)).
		Msg("Finished-gameweek stats sync completed")

	return result, nil
}

// syncGameweek upserts all player stats for one gameweek, then marks it
// synced. Any batch failure aborts the gameweek before the flag is set.
func (s *GameweekStatsService) syncGameweek(ctx context.Context, gameweekID int) (int, error) {
	snapshot, _, err := s.client.GetLiveGameweek(ctx, gameweekID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch final stats for gameweek %d: %w", gameweekID, err)
	}

	rows := 0
	elements := snapshot.Elements
	for batchStart := 0; batchStart < len(elements); batchStart += s.batchSize {
		end := batchStart + s.batchSize
		if end > len(elements) {
			end = len(elements)
		}

		batchRows, err := upsertStatBatch(ctx, s.db, gameweekID, elements[batchStart:end])
		rows += batchRows
		if err != nil {
			return rows, fmt.Errorf("stats batch failed for gameweek %d: %w", gameweekID, err)
		}
	}

	if err := s.db.MarkGameweekStatsSynced(ctx, gameweekID); err != nil {
		return rows, fmt.Errorf("failed to mark gameweek %d synced: %w", gameweekID, err)
	}

	return rows, nil
}

// Resync clears the idempotence flag for a gameweek and re-runs its
// stats upsert. Supports administrative re-runs; upserts are stable
// under repetition.
func (s *GameweekStatsService) Resync(ctx context.Context, gameweekID int) (int, error) {
	if err := s.db.ResetGameweekStatsSynced(ctx, gameweekID); err != nil {
		return 0, fmt.Errorf("failed to reset sync flag for gameweek %d: %w", gameweekID, err)
	}
	return s.syncGameweek(ctx, gameweekID)
}
