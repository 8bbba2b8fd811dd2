package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/goalsync/core/pkg/models"
)

// All writes are idempotent upserts keyed by natural id. Re-running any
// sync pass against unchanged data produces identical rows.

type UpsertTeamParams struct {
	ID        int
	Name      string
	ShortName string
	Slug      string
	Strength  int
}

const upsertTeam = `
INSERT INTO teams (id, name, short_name, slug, strength, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	short_name = EXCLUDED.short_name,
	slug = EXCLUDED.slug,
	strength = EXCLUDED.strength,
	updated_at = now()`

func (q *Queries) UpsertTeam(ctx context.Context, params UpsertTeamParams) error {
	_, err := q.db.Exec(ctx, upsertTeam,
		params.ID, params.Name, params.ShortName, params.Slug, params.Strength)
	return err
}

type UpsertPlayerParams struct {
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
}

const upsertPlayer = `
INSERT INTO players (id, team_id, first_name, second_name, web_name, slug,
	element_type, now_cost, total_points, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (id) DO UPDATE SET
	team_id = EXCLUDED.team_id,
	first_name = EXCLUDED.first_name,
	second_name = EXCLUDED.second_name,
	web_name = EXCLUDED.web_name,
	slug = EXCLUDED.slug,
	element_type = EXCLUDED.element_type,
	now_cost = EXCLUDED.now_cost,
	total_points = EXCLUDED.total_points,
	status = EXCLUDED.status,
	updated_at = now()`

func (q *Queries) UpsertPlayer(ctx context.Context, params UpsertPlayerParams) error {
	_, err := q.db.Exec(ctx, upsertPlayer,
		params.ID, params.TeamID, params.FirstName, params.SecondName,
		params.WebName, params.Slug, params.ElementType, params.NowCost,
		params.TotalPoints, params.Status)
	return err
}

type UpsertGameweekParams struct {
	ID           int
	Name         string
	DeadlineTime *time.Time
	IsCurrent    bool
	IsNext       bool
	Finished     bool
}

// The upsert never touches is_player_stats_synced: only the gameweek
// stats sync sets that flag, after a fully successful upsert pass.
const upsertGameweek = `
INSERT INTO gameweeks (id, name, deadline_time, is_current, is_next,
	finished, is_player_stats_synced, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, false, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	deadline_time = EXCLUDED.deadline_time,
	is_current = EXCLUDED.is_current,
	is_next = EXCLUDED.is_next,
	finished = EXCLUDED.finished,
	updated_at = now()`

func (q *Queries) UpsertGameweek(ctx context.Context, params UpsertGameweekParams) error {
	_, err := q.db.Exec(ctx, upsertGameweek,
		params.ID, params.Name, params.DeadlineTime, params.IsCurrent,
		params.IsNext, params.Finished)
	return err
}

const markGameweekStatsSynced = `
UPDATE gameweeks SET is_player_stats_synced = true, updated_at = now()
WHERE id = $1`

func (q *Queries) MarkGameweekStatsSynced(ctx context.Context, gameweekID int) error {
	tag, err := q.db.Exec(ctx, markGameweekStatsSynced, gameweekID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gameweek %d not found", gameweekID)
	}
	return nil
}

const resetGameweekStatsSynced = `
UPDATE gameweeks SET is_player_stats_synced = false, updated_at = now()
WHERE id = $1`

// ResetGameweekStatsSynced clears the idempotence flag so the next sync
// pass re-runs the gameweek wholesale. Used by administrative re-runs.
func (q *Queries) ResetGameweekStatsSynced(ctx context.Context, gameweekID int) error {
	_, err := q.db.Exec(ctx, resetGameweekStatsSynced, gameweekID)
	return err
}

type UpsertFixtureParams struct {
	ID          int
	GameweekID  *int
	HomeTeamID  int
	AwayTeamID  int
	KickoffTime *time.Time
	Finished    bool
	HomeScore   *int
	AwayScore   *int
}

const upsertFixture = `
INSERT INTO fixtures (id, gameweek_id, home_team_id, away_team_id,
	kickoff_time, finished, home_score, away_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE SET
	gameweek_id = EXCLUDED.gameweek_id,
	home_team_id = EXCLUDED.home_team_id,
	away_team_id = EXCLUDED.away_team_id,
	kickoff_time = EXCLUDED.kickoff_time,
	finished = EXCLUDED.finished,
	home_score = EXCLUDED.home_score,
	away_score = EXCLUDED.away_score,
	updated_at = now()`

func (q *Queries) UpsertFixture(ctx context.Context, params UpsertFixtureParams) error {
	_, err := q.db.Exec(ctx, upsertFixture,
		params.ID, params.GameweekID, params.HomeTeamID, params.AwayTeamID,
		params.KickoffTime, params.Finished, params.HomeScore, params.AwayScore)
	return err
}

type UpsertPlayerGameweekStatParams struct {
	PlayerID    int
	GameweekID  int
	Minutes     int
	GoalsScored int
	Assists     int
	CleanSheets int
	Bonus       int
	BPS         int
	TotalPoints int
}

const upsertPlayerGameweekStat = `
INSERT INTO player_gameweek_stats (player_id, gameweek_id, minutes,
	goals_scored, assists, clean_sheets, bonus, bps, total_points, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (player_id, gameweek_id) DO UPDATE SET
	minutes = EXCLUDED.minutes,
	goals_scored = EXCLUDED.goals_scored,
	assists = EXCLUDED.assists,
	clean_sheets = EXCLUDED.clean_sheets,
	bonus = EXCLUDED.bonus,
	bps = EXCLUDED.bps,
	total_points = EXCLUDED.total_points,
	updated_at = now()`

func (q *Queries) UpsertPlayerGameweekStat(ctx context.Context, params UpsertPlayerGameweekStatParams) error {
	_, err := q.db.Exec(ctx, upsertPlayerGameweekStat,
		params.PlayerID, params.GameweekID, params.Minutes, params.GoalsScored,
		params.Assists, params.CleanSheets, params.Bonus, params.BPS,
		params.TotalPoints)
	return err
}

type UpsertPlayerSeasonStatParams struct {
	PlayerID    int
	TotalPoints int
	NowCost     int
	Form        string
}

const upsertPlayerSeasonStat = `
INSERT INTO player_season_stats (player_id, total_points, now_cost, form, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (player_id) DO UPDATE SET
	total_points = EXCLUDED.total_points,
	now_cost = EXCLUDED.now_cost,
	form = EXCLUDED.form,
	updated_at = now()`

func (q *Queries) UpsertPlayerSeasonStat(ctx context.Context, params UpsertPlayerSeasonStatParams) error {
	_, err := q.db.Exec(ctx, upsertPlayerSeasonStat,
		params.PlayerID, params.TotalPoints, params.NowCost, params.Form)
	return err
}

const listGameweeks = `
SELECT id, name, deadline_time, is_current, is_next, finished,
	is_player_stats_synced, updated_at
FROM gameweeks ORDER BY id`

func (q *Queries) ListGameweeks(ctx context.Context) ([]models.Gameweek, error) {
	rows, err := q.db.Query(ctx, listGameweeks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gameweeks []models.Gameweek
	for rows.Next() {
		var gw models.Gameweek
		if err := rows.Scan(&gw.ID, &gw.Name, &gw.DeadlineTime, &gw.IsCurrent,
			&gw.IsNext, &gw.Finished, &gw.IsPlayerStatsSynced, &gw.UpdatedAt); err != nil {
			return nil, err
		}
		gameweeks = append(gameweeks, gw)
	}
	return gameweeks, rows.Err()
}

const getCurrentGameweek = `
SELECT id, name, deadline_time, is_current, is_next, finished,
	is_player_stats_synced, updated_at
FROM gameweeks WHERE is_current = true LIMIT 1`

func (q *Queries) GetCurrentGameweek(ctx context.Context) (*models.Gameweek, error) {
	var gw models.Gameweek
	err := q.db.QueryRow(ctx, getCurrentGameweek).Scan(&gw.ID, &gw.Name,
		&gw.DeadlineTime, &gw.IsCurrent, &gw.IsNext, &gw.Finished,
		&gw.IsPlayerStatsSynced, &gw.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

const listUnsyncedFinishedGameweeks = `
SELECT id, name, deadline_time, is_current, is_next, finished,
	is_player_stats_synced, updated_at
FROM gameweeks
WHERE finished = true AND is_player_stats_synced = false
ORDER BY id`

func (q *Queries) ListUnsyncedFinishedGameweeks(ctx context.Context) ([]models.Gameweek, error) {
	rows, err := q.db.Query(ctx, listUnsyncedFinishedGameweeks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gameweeks []models.Gameweek
	for rows.Next() {
		var gw models.Gameweek
		if err := rows.Scan(&gw.ID, &gw.Name, &gw.DeadlineTime, &gw.IsCurrent,
			&gw.IsNext, &gw.Finished, &gw.IsPlayerStatsSynced, &gw.UpdatedAt); err != nil {
			return nil, err
		}
		gameweeks = append(gameweeks, gw)
	}
	return gameweeks, rows.Err()
}

const listFixtures = `
SELECT id, gameweek_id, home_team_id, away_team_id, kickoff_time,
	finished, home_score, away_score, updated_at
FROM fixtures ORDER BY id`

func (q *Queries) ListFixtures(ctx context.Context) ([]models.Fixture, error) {
	rows, err := q.db.Query(ctx, listFixtures)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFixtures(rows)
}

func scanFixtures(rows pgx.Rows) ([]models.Fixture, error) {
	var fixtures []models.Fixture
	for rows.Next() {
		var f models.Fixture
		if err := rows.Scan(&f.ID, &f.GameweekID, &f.HomeTeamID, &f.AwayTeamID,
			&f.KickoffTime, &f.Finished, &f.HomeScore, &f.AwayScore, &f.UpdatedAt); err != nil {
			return nil, err
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

type InsertRefreshLogParams struct {
	Type   models.RefreshType
	Regime string
	State  string
	Detail []byte
}

const insertRefreshLog = `
INSERT INTO refresh_logs (type, regime, state, detail, created_at)
VALUES ($1, $2, $3, $4, now())`

func (q *Queries) InsertRefreshLog(ctx context.Context, params InsertRefreshLogParams) error {
	_, err := q.db.Exec(ctx, insertRefreshLog,
		string(params.Type), params.Regime, params.State, params.Detail)
	return err
}

const latestRefreshLog = `
SELECT id, type, regime, state, detail, created_at
FROM refresh_logs
WHERE type = $1 AND state = ANY($2)
ORDER BY created_at DESC
LIMIT 1`

// LatestRefreshLog returns the most recent log row for the job type
// whose state is in the given whitelist, or nil when none exists.
func (q *Queries) LatestRefreshLog(ctx context.Context, refreshType models.RefreshType, states []string) (*models.RefreshLogRecord, error) {
	var rec models.RefreshLogRecord
	var recType string
	err := q.db.QueryRow(ctx, latestRefreshLog, string(refreshType), states).
		Scan(&rec.ID, &recType, &rec.Regime, &rec.State, &rec.Detail, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Type = models.RefreshType(recType)
	return &rec, nil
}

const setSystemMeta = `
INSERT INTO system_meta (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

func (q *Queries) SetSystemMeta(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, setSystemMeta, key, value)
	return err
}

const getSystemMeta = `SELECT value FROM system_meta WHERE key = $1`

func (q *Queries) GetSystemMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRow(ctx, getSystemMeta, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
