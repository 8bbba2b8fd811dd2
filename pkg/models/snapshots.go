package models

import (
	"fmt"
	"time"
)

// ResourceKind identifies an upstream resource for caching and TTL policy.
type ResourceKind string

const (
	ResourceBootstrap    ResourceKind = "bootstrap_static"
	ResourceFixtures     ResourceKind = "fixtures"
	ResourceLiveGameweek ResourceKind = "live_gameweek"
	ResourcePlayerDetail ResourceKind = "player_detail"
)

// TeamSnapshot is one team entry of the bootstrap resource.
type TeamSnapshot struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Strength  int    `json:"strength"`
}

// PlayerSnapshot is one element entry of the bootstrap resource.
type PlayerSnapshot struct {
	ID          int    `json:"id"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
	WebName     string `json:"web_name"`
	TeamID      int    `json:"team"`
	ElementType int    `json:"element_type"`
	NowCost     int    `json:"now_cost"`
	TotalPoints int    `json:"total_points"`
	Form        string `json:"form"`
	Status      string `json:"status"`
}

// GameweekSnapshot is one event entry of the bootstrap resource.
type GameweekSnapshot struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	DeadlineTime *time.Time `json:"deadline_time"`
	IsCurrent    bool       `json:"is_current"`
	IsNext       bool       `json:"is_next"`
	Finished     bool       `json:"finished"`
}

// BootstrapSnapshot is the full bootstrap-static payload.
type BootstrapSnapshot struct {
	Events   []GameweekSnapshot `json:"events"`
	Teams    []TeamSnapshot     `json:"teams"`
	Elements []PlayerSnapshot   `json:"elements"`
}

// Validate checks the structural invariants the sync engine relies on.
func (s *BootstrapSnapshot) Validate() error {
	if len(s.Teams) == 0 {
		return fmt.Errorf("bootstrap snapshot has no teams")
	}
	if len(s.Elements) == 0 {
		return fmt.Errorf("bootstrap snapshot has no elements")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("bootstrap snapshot has no events")
	}
	for _, p := range s.Elements {
		if p.ID == 0 {
			return fmt.Errorf("bootstrap element with zero id")
		}
	}
	return nil
}

// FixtureSnapshot is one fixture entry of the fixtures resource.
type FixtureSnapshot struct {
	ID          int        `json:"id"`
	GameweekID  *int       `json:"event"`
	HomeTeamID  int        `json:"team_h"`
	AwayTeamID  int        `json:"team_a"`
	KickoffTime *time.Time `json:"kickoff_time"`
	Finished    bool       `json:"finished"`
	HomeScore   *int       `json:"team_h_score"`
	AwayScore   *int       `json:"team_a_score"`
}

// FixturesSnapshot is the full fixtures payload.
type FixturesSnapshot struct {
	Fixtures []FixtureSnapshot
}

func (s *FixturesSnapshot) Validate() error {
	for _, f := range s.Fixtures {
		if f.ID == 0 {
			return fmt.Errorf("fixture with zero id")
		}
		// A finished fixture must carry both scores
		if f.Finished && (f.HomeScore == nil || f.AwayScore == nil) {
			return fmt.Errorf("fixture %d finished without scores", f.ID)
		}
	}
	return nil
}

// LiveStats is the per-player stat block of the live-gameweek resource.
type LiveStats struct {
	Minutes     int `json:"minutes"`
	GoalsScored int `json:"goals_scored"`
	Assists     int `json:"assists"`
	CleanSheets int `json:"clean_sheets"`
	Bonus       int `json:"bonus"`
	BPS         int `json:"bps"`
	TotalPoints int `json:"total_points"`
}

// LiveElement is one player entry of the live-gameweek resource.
type LiveElement struct {
	ID    int       `json:"id"`
	Stats LiveStats `json:"stats"`
}

// LiveGameweekSnapshot is the full live payload for one gameweek.
type LiveGameweekSnapshot struct {
	Elements []LiveElement `json:"elements"`
}

func (s *LiveGameweekSnapshot) Validate() error {
	for _, e := range s.Elements {
		if e.ID == 0 {
			return fmt.Errorf("live element with zero id")
		}
	}
	return nil
}

// PlayerHistoryEntry is one past-gameweek row of the player detail resource.
type PlayerHistoryEntry struct {
	Element     int `json:"element"`
	Round       int `json:"round"`
	Minutes     int `json:"minutes"`
	GoalsScored int `json:"goals_scored"`
	Assists     int `json:"assists"`
	TotalPoints int `json:"total_points"`
}

// PlayerDetailSnapshot is the per-player element-summary payload.
type PlayerDetailSnapshot struct {
	History []PlayerHistoryEntry `json:"history"`
}
