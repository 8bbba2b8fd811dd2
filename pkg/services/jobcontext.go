package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/state"
)

// JobContext is the enriched metadata attached to every queued job at
// dispatch time. It is constructed fresh for each dispatch and never
// persisted: everything here is re-derivable from fixture, gameweek and
// refresh-log state, so an operator can inject a job at any time without
// hand-supplying consistent context.
type JobContext struct {
	RefreshType   models.RefreshType `json:"refresh_type"`
	GameweekID    *int               `json:"gameweek_id,omitempty"`
	LastSuccessAt *time.Time         `json:"last_success_at,omitempty"`
	Source        string             `json:"source"`
	Priority      int                `json:"priority"`
	Regime        state.Regime       `json:"regime"`
	Timestamp     time.Time          `json:"timestamp"`
}

// ContextOverrides carries caller-supplied values that take precedence
// over derived ones, supporting manual and administrative re-runs.
type ContextOverrides struct {
	GameweekID *int
	Priority   *int
}

// Lower numeric priority means more urgent, matching the queue's
// min-heap ordering.
var basePriority = map[models.RefreshType]int{
	models.RefreshLive:          2,
	models.RefreshFixtures:      3,
	models.RefreshGameweekStats: 4,
	models.RefreshBootstrap:     5,
	models.RefreshDaily:         6,
}

// urgentRegimes names, per job type, the regimes under which the job's
// priority is raised one step. A simple additive adjustment, not a full
// scheduling policy.
var urgentRegimes = map[models.RefreshType][]state.Regime{
	models.RefreshLive:          {state.RegimeLiveMatch, state.RegimePostMatch},
	models.RefreshFixtures:      {state.RegimeLiveMatch, state.RegimePostMatch},
	models.RefreshGameweekStats: {state.RegimePostMatch},
}

// successStates whitelists the terminal states that count as a
// successful run, per job type. Different job types report different
// success-state names, so a generic "completed" check is not enough.
var successStates = map[models.RefreshType][]string{
	models.RefreshBootstrap:     {"synced", "unchanged"},
	models.RefreshFixtures:      {"synced", "unchanged"},
	models.RefreshLive:          {"refreshed", "unchanged"},
	models.RefreshGameweekStats: {"stats_synced", "nothing_to_sync"},
	models.RefreshDaily:         {"completed"},
}

// SuccessStates returns the success whitelist for a job type.
func SuccessStates(refreshType models.RefreshType) []string {
	if states, ok := successStates[refreshType]; ok {
		return states
	}
	return []string{"completed"}
}

// ContextService computes per-job metadata used both to prioritize
// queue entries and to decide whether a scheduled job should execute.
type ContextService struct {
	db     Store
	states *StateService
	logger *logger.Logger
}

func NewContextService(db Store, states *StateService) *ContextService {
	return &ContextService{
		db:     db,
		states: states,
		logger: logger.New("context-service"),
	}
}

// BuildContext derives a fresh JobContext for one dispatch.
func (s *ContextService) BuildContext(ctx context.Context, refreshType models.RefreshType, source string, overrides *ContextOverrides) (*JobContext, error) {
	detector, err := s.states.Detector(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector for job context: %w", err)
	}
	regime := detector.Classify()

	jc := &JobContext{
		RefreshType: refreshType,
		Source:      source,
		Regime:      regime,
		Priority:    priorityFor(refreshType, regime),
		Timestamp:   time.Now(),
	}

	if id := detector.CurrentGameweekID(); id != 0 {
		jc.GameweekID = &id
	}

	last, err := s.db.LatestRefreshLog(ctx, refreshType, SuccessStates(refreshType))
	if err != nil {
		// Last-run time is advisory; a log lookup failure must not
		// block dispatch.
		s.logger.Warn().
			Err(err).
			Str("refresh_type", string(refreshType)).
			Str("action", "last_success_lookup_failed").
			Msg("Could not determine last successful run")
	} else if last != nil {
		t := last.CreatedAt
		jc.LastSuccessAt = &t
	}

	if overrides != nil {
		if overrides.GameweekID != nil {
			jc.GameweekID = overrides.GameweekID
		}
		if overrides.Priority != nil {
			jc.Priority = *overrides.Priority
		}
	}

	return jc, nil
}

func priorityFor(refreshType models.RefreshType, regime state.Regime) int {
	priority, ok := basePriority[refreshType]
	if !ok {
		priority = 5
	}
	for _, r := range urgentRegimes[refreshType] {
		if r == regime {
			priority--
			break
		}
	}
	return priority
}
