package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/state"
)

// RefreshResult is the outcome surfaced to the triggering layer for
// every refresh operation.
type RefreshResult struct {
	Refreshed bool           `json:"refreshed"`
	State     string         `json:"state"`
	Details   map[string]any `json:"details,omitempty"`
}

// RefreshService is the façade the queue workers and the HTTP trigger
// surface call into. Each Perform*Refresh consults the state detector to
// decide whether work is still warranted, runs the sync engine, and
// appends a refresh log record regardless of outcome.
type RefreshService struct {
	bootstrap *BootstrapService
	fixtures  *FixturesService
	live      *LiveService
	gwStats   *GameweekStatsService
	states    *StateService
	db        Store
	logger    *logger.Logger
}

func NewRefreshService(
	bootstrap *BootstrapService,
	fixtures *FixturesService,
	live *LiveService,
	gwStats *GameweekStatsService,
	states *StateService,
	db Store,
) *RefreshService {
	return &RefreshService{
		bootstrap: bootstrap,
		fixtures:  fixtures,
		live:      live,
		gwStats:   gwStats,
		states:    states,
		db:        db,
		logger:    logger.New("refresh-service"),
	}
}

// PerformBootstrapRefresh syncs the bootstrap-static resource.
func (s *RefreshService) PerformBootstrapRefresh(ctx context.Context) (*RefreshResult, error) {
	regime := s.states.Regime(ctx)

	result, err := s.bootstrap.Sync(ctx)
	if err != nil {
		s.logRefresh(ctx, models.RefreshBootstrap, regime, "error", map[string]any{"error": err.Error()})
		return &RefreshResult{State: "error", Details: map[string]any{"error": err.Error()}}, err
	}

	return s.finishSync(ctx, models.RefreshBootstrap, regime, result, "synced", "unchanged"), nil
}

// PerformFixturesRefresh syncs the fixtures resource.
func (s *RefreshService) PerformFixturesRefresh(ctx context.Context) (*RefreshResult, error) {
	regime := s.states.Regime(ctx)

	result, err := s.fixtures.Sync(ctx)
	if err != nil {
		s.logRefresh(ctx, models.RefreshFixtures, regime, "error", map[string]any{"error": err.Error()})
		return &RefreshResult{State: "error", Details: map[string]any{"error": err.Error()}}, err
	}

	return s.finishSync(ctx, models.RefreshFixtures, regime, result, "synced", "unchanged"), nil
}

// PerformLiveRefresh syncs live gameweek stats. Skipped outside any
// live or post-match window: the short-cadence schedule keeps firing,
// but there is nothing worth fetching.
func (s *RefreshService) PerformLiveRefresh(ctx context.Context) (*RefreshResult, error) {
	regime := s.states.Regime(ctx)

	if regime != state.RegimeLiveMatch && regime != state.RegimePostMatch {
		s.logRefresh(ctx, models.RefreshLive, regime, "skipped", map[string]any{"reason": "no live or post-match window"})
		return &RefreshResult{State: "skipped", Details: map[string]any{"regime": regime.String()}}, nil
	}

	result, err := s.live.Sync(ctx)
	if err != nil {
		s.logRefresh(ctx, models.RefreshLive, regime, "error", map[string]any{"error": err.Error()})
		return &RefreshResult{State: "error", Details: map[string]any{"error": err.Error()}}, err
	}

	return s.finishSync(ctx, models.RefreshLive, regime, result, "refreshed", "unchanged"), nil
}

// PerformGameweekStatsRefresh runs the once-only finished-gameweek stats
// upsert for every eligible gameweek.
func (s *RefreshService) PerformGameweekStatsRefresh(ctx context.Context) (*RefreshResult, error) {
	regime := s.states.Regime(ctx)

	result, err := s.gwStats.SyncFinished(ctx)
	if err != nil {
		s.logRefresh(ctx, models.RefreshGameweekStats, regime, "error", map[string]any{"error": err.Error()})
		return &RefreshResult{State: "error", Details: map[string]any{"error": err.Error()}}, err
	}

	details := map[string]any{
		"gameweeks_synced": result.GameweeksSynced,
		"gameweeks_failed": result.GameweeksFailed,
		"rows_affected":    result.RowsAffected,
	}

	syncState := "nothing_to_sync"
	refreshed := false
	switch {
	case len(result.GameweeksFailed) > 0:
		syncState = "partial"
		refreshed = len(result.GameweeksSynced) > 0
	case len(result.GameweeksSynced) > 0:
		syncState = "stats_synced"
		refreshed = true
	}

	s.logRefresh(ctx, models.RefreshGameweekStats, regime, syncState, details)
	return &RefreshResult{Refreshed: refreshed, State: syncState, Details: details}, nil
}

// PerformDailyRefresh chains the daily maintenance pass: bootstrap,
// fixtures, then finished-gameweek stats. Individual step failures are
// recorded and do not abort later steps.
func (s *RefreshService) PerformDailyRefresh(ctx context.Context) (*RefreshResult, error) {
	regime := s.states.Regime(ctx)
	details := make(map[string]any)
	failures := 0

	if r, err := s.bootstrap.Sync(ctx); err != nil {
		failures++
		details["bootstrap"] = err.Error()
	} else {
		details["bootstrap_changed"] = r.Changed
	}

	if r, err := s.fixtures.Sync(ctx); err != nil {
		failures++
		details["fixtures"] = err.Error()
	} else {
		details["fixtures_changed"] = r.Changed
	}

	if r, err := s.gwStats.SyncFinished(ctx); err != nil {
		failures++
		details["gameweek_stats"] = err.Error()
	} else {
		details["gameweeks_synced"] = len(r.GameweeksSynced)
	}

	syncState := "completed"
	if failures > 0 {
		syncState = "partial"
	}

	s.logRefresh(ctx, models.RefreshDaily, regime, syncState, details)

	result := &RefreshResult{Refreshed: failures == 0, State: syncState, Details: details}
	if failures == 3 {
		return result, fmt.Errorf("daily refresh failed entirely")
	}
	return result, nil
}

// Perform dispatches by refresh type.
func (s *RefreshService) Perform(ctx context.Context, refreshType models.RefreshType) (*RefreshResult, error) {
	switch refreshType {
	case models.RefreshBootstrap:
		return s.PerformBootstrapRefresh(ctx)
	case models.RefreshFixtures:
		return s.PerformFixturesRefresh(ctx)
	case models.RefreshLive:
		return s.PerformLiveRefresh(ctx)
	case models.RefreshGameweekStats:
		return s.PerformGameweekStatsRefresh(ctx)
	case models.RefreshDaily:
		return s.PerformDailyRefresh(ctx)
	default:
		return nil, fmt.Errorf("unknown refresh type: %s", refreshType)
	}
}

func (s *RefreshService) finishSync(ctx context.Context, refreshType models.RefreshType, regime state.Regime, result *SyncResult, changedState, unchangedState string) *RefreshResult {
	syncState := unchangedState
	if result.Changed {
		syncState = changedState
	}
	if result.BatchErrors > 0 {
		syncState = "partial"
	}

	details := map[string]any{
		"changed":       result.Changed,
		"rows_affected": result.RowsAffected,
	}
	if result.BatchErrors > 0 {
		details["batch_errors"] = result.BatchErrors
	}

	s.logRefresh(ctx, refreshType, regime, syncState, details)
	return &RefreshResult{Refreshed: result.Changed, State: syncState, Details: details}
}

// logRefresh appends the audit row. Log failures are reported but never
// fail the refresh itself.
func (s *RefreshService) logRefresh(ctx context.Context, refreshType models.RefreshType, regime state.Regime, syncState string, details map[string]any) {
	detail, err := json.Marshal(details)
	if err != nil {
		detail = []byte("{}")
	}

	if err := s.db.InsertRefreshLog(ctx, database.InsertRefreshLogParams{
		Type:   refreshType,
		Regime: regime.String(),
		State:  syncState,
		Detail: detail,
	}); err != nil {
		s.logger.Error().
			Err(err).
			Str("refresh_type", string(refreshType)).
			Str("state", syncState).
			Str("action", "refresh_log_failed").
			Msg("Failed to append refresh log record")
	}

	_ = s.db.SetSystemMeta(ctx, lastRefreshMetaKey(refreshType), time.Now().UTC().Format(time.RFC3339))
}

// lastRefreshMetaKey is the system_meta key stamping the most recent run
// of a refresh type. The state diagnostics read these back.
func lastRefreshMetaKey(refreshType models.RefreshType) string {
	return "last_refresh:" + string(refreshType)
}
