package models

import "time"

// RefreshType identifies a refresh job kind.
type RefreshType string

const (
	RefreshBootstrap     RefreshType = "bootstrap_refresh"
	RefreshFixtures      RefreshType = "fixtures_refresh"
	RefreshLive          RefreshType = "live_refresh"
	RefreshGameweekStats RefreshType = "gameweek_stats_refresh"
	RefreshDaily         RefreshType = "daily_refresh"
)

// AllRefreshTypes lists every job kind the engine knows about.
var AllRefreshTypes = []RefreshType{
	RefreshBootstrap,
	RefreshFixtures,
	RefreshLive,
	RefreshGameweekStats,
	RefreshDaily,
}

// Team is the persisted team row.
type Team struct {
	ID        int
	Name      string
	ShortName string
	Slug      string
	Strength  int
	UpdatedAt time.Time
}

// Player is the persisted player row.
type Player struct {
	ID          int
	TeamID      int
	FirstName   string
	SecondName  string
	WebName     string
	Slug        string
	ElementType int
	NowCost     int
	TotalPoints int
	Status      string
	UpdatedAt   time.Time
}

// Gameweek is the persisted gameweek row. IsPlayerStatsSynced is the
// idempotence guard for the once-only per-gameweek stats upsert.
type Gameweek struct {
	ID                  int
	Name                string
	DeadlineTime        *time.Time
	IsCurrent           bool
	IsNext              bool
	Finished            bool
	IsPlayerStatsSynced bool
	UpdatedAt           time.Time
}

// Fixture is the persisted fixture row.
type Fixture struct {
	ID          int
	GameweekID  *int
	HomeTeamID  int
	AwayTeamID  int
	KickoffTime *time.Time
	Finished    bool
	HomeScore   *int
	AwayScore   *int
	UpdatedAt   time.Time
}

// HasKickedOff reports whether the fixture kickoff is at or before now.
// Fixtures without a scheduled kickoff have not kicked off.
func (f *Fixture) HasKickedOff(now time.Time) bool {
	return f.KickoffTime != nil && !f.KickoffTime.After(now)
}

// EstimatedEnd returns the heuristic end time (kickoff + 2h) used when
// the upstream source has not yet reported completion. The returned
// bool is false when no kickoff is scheduled.
func (f *Fixture) EstimatedEnd() (time.Time, bool) {
	if f.KickoffTime == nil {
		return time.Time{}, false
	}
	return f.KickoffTime.Add(2 * time.Hour), true
}

// PlayerGameweekStat is the per-player per-gameweek stat row.
type PlayerGameweekStat struct {
	PlayerID    int
	GameweekID  int
	Minutes     int
	GoalsScored int
	Assists     int
	CleanSheets int
	Bonus       int
	BPS         int
	TotalPoints int
	UpdatedAt   time.Time
}

// PlayerSeasonStat is the season-cumulative stat row.
type PlayerSeasonStat struct {
	PlayerID    int
	TotalPoints int
	NowCost     int
	Form        string
	UpdatedAt   time.Time
}

// RefreshLogRecord is the append-only audit row written once per job
// execution. It is only ever queried to answer "when did type X last
// succeed".
type RefreshLogRecord struct {
	ID        int64
	Type      RefreshType
	Regime    string
	State     string
	Detail    []byte
	CreatedAt time.Time
}
