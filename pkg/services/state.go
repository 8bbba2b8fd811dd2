package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/state"
)

// StateService assembles fixture/gameweek snapshots from the persistent
// store and hands them to the pure state detector. It is the only place
// the detector's inputs are gathered; the detector itself does no I/O.
type StateService struct {
	db     Store
	now    func() time.Time
	logger *logger.Logger
}

func NewStateService(db Store) *StateService {
	return &StateService{
		db:     db,
		now:    time.Now,
		logger: logger.New("state-service"),
	}
}

// Detector builds a detector over the current fixture/gameweek state.
func (s *StateService) Detector(ctx context.Context) (*state.Detector, error) {
	fixtures, err := s.db.ListFixtures(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	gameweeks, err := s.db.ListGameweeks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gameweeks: %w", err)
	}

	return state.NewDetectorAt(state.Snapshot{
		Fixtures:  fixtures,
		Gameweeks: gameweeks,
	}, s.now), nil
}

// StateDetails is the diagnostic payload for getCurrentState queries.
type StateDetails struct {
	State             string            `json:"state"`
	LiveMatchActive   bool              `json:"live_match_active"`
	PostMatchWindow   bool              `json:"post_match_window"`
	PreDeadlineWindow bool              `json:"pre_deadline_window"`
	CurrentGameweekID int               `json:"current_gameweek_id"`
	LastRefreshes     map[string]string `json:"last_refreshes,omitempty"`
}

// CurrentState answers the getCurrentState diagnostic query.
func (s *StateService) CurrentState(ctx context.Context) (*StateDetails, error) {
	detector, err := s.Detector(ctx)
	if err != nil {
		return nil, err
	}

	return &StateDetails{
		State:             detector.Classify().String(),
		LiveMatchActive:   detector.IsLiveMatchActive(),
		PostMatchWindow:   detector.IsPostMatchWindow(),
		PreDeadlineWindow: detector.IsPreDeadlineWindow(),
		CurrentGameweekID: detector.CurrentGameweekID(),
		LastRefreshes:     s.lastRefreshes(ctx),
	}, nil
}

// lastRefreshes reads back the per-type last-run stamps. Lookup failures
// just leave a type out; diagnostics never fail over metadata.
func (s *StateService) lastRefreshes(ctx context.Context) map[string]string {
	stamps := make(map[string]string)
	for _, refreshType := range models.AllRefreshTypes {
		value, err := s.db.GetSystemMeta(ctx, lastRefreshMetaKey(refreshType))
		if err != nil || value == "" {
			continue
		}
		stamps[string(refreshType)] = value
	}
	return stamps
}

// Regime returns the current classification, falling back to regular
// when the store is unreachable so refresh jobs degrade rather than
// fail outright.
func (s *StateService) Regime(ctx context.Context) state.Regime {
	detector, err := s.Detector(ctx)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("action", "regime_fallback").
			Msg("Could not derive regime, assuming regular")
		return state.RegimeRegular
	}
	return detector.Classify()
}
