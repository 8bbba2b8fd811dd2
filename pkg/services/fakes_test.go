package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/models"
)

// fakeFetcher serves canned snapshots and counts fetches.
type fakeFetcher struct {
	bootstrap    *models.BootstrapSnapshot
	bootstrapRaw []byte
	bootstrapErr error

	fixtures    *models.FixturesSnapshot
	fixturesRaw []byte
	fixturesErr error

	live    map[int]*models.LiveGameweekSnapshot
	liveRaw map[int][]byte
	liveErr error

	detail    *models.PlayerDetailSnapshot
	detailRaw []byte
	detailErr error

	bootstrapCalls int
	fixtureCalls   int
	liveCalls      int
	detailCalls    int
}

func (f *fakeFetcher) GetBootstrap(ctx context.Context) (*models.BootstrapSnapshot, []byte, error) {
	f.bootstrapCalls++
	if f.bootstrapErr != nil {
		return nil, nil, f.bootstrapErr
	}
	return f.bootstrap, f.bootstrapRaw, nil
}

func (f *fakeFetcher) GetFixtures(ctx context.Context) (*models.FixturesSnapshot, []byte, error) {
	f.fixtureCalls++
	if f.fixturesErr != nil {
		return nil, nil, f.fixturesErr
	}
	return f.fixtures, f.fixturesRaw, nil
}

func (f *fakeFetcher) GetLiveGameweek(ctx context.Context, gameweekID int) (*models.LiveGameweekSnapshot, []byte, error) {
	f.liveCalls++
	if f.liveErr != nil {
		return nil, nil, f.liveErr
	}
	snap, ok := f.live[gameweekID]
	if !ok {
		return nil, nil, errors.New("no live snapshot for gameweek")
	}
	return snap, f.liveRaw[gameweekID], nil
}

func (f *fakeFetcher) GetPlayerDetail(ctx context.Context, playerID int) (*models.PlayerDetailSnapshot, []byte, error) {
	f.detailCalls++
	if f.detailErr != nil {
		return nil, nil, f.detailErr
	}
	return f.detail, f.detailRaw, nil
}

// fakeStore records every write and serves canned reads.
type fakeStore struct {
	mu sync.Mutex

	teams       []database.UpsertTeamParams
	players     []database.UpsertPlayerParams
	gameweeks   []database.UpsertGameweekParams
	fixtures    []database.UpsertFixtureParams
	gwStats     []database.UpsertPlayerGameweekStatParams
	seasonStats []database.UpsertPlayerSeasonStatParams
	refreshLogs []database.InsertRefreshLogParams
	meta        map[string]string
	synced      map[int]bool

	fixtureRows      []models.Fixture
	gameweekRows     []models.Gameweek
	currentGW        *models.Gameweek
	unsyncedFinished []models.Gameweek
	latestLog        *models.RefreshLogRecord

	failPlayerID  int
	failStatAfter int
	listErr       error
	latestLogErr  error
	markErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meta:          make(map[string]string),
		synced:        make(map[int]bool),
		failPlayerID:  -1,
		failStatAfter: -1,
	}
}

func (s *fakeStore) UpsertTeam(ctx context.Context, p database.UpsertTeamParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = append(s.teams, p)
	return nil
}

func (s *fakeStore) UpsertPlayer(ctx context.Context, p database.UpsertPlayerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == s.failPlayerID {
		return errors.New("player upsert failed")
	}
	s.players = append(s.players, p)
	return nil
}

func (s *fakeStore) UpsertGameweek(ctx context.Context, p database.UpsertGameweekParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameweeks = append(s.gameweeks, p)
	return nil
}

func (s *fakeStore) UpsertFixture(ctx context.Context, p database.UpsertFixtureParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures = append(s.fixtures, p)
	return nil
}

func (s *fakeStore) UpsertPlayerGameweekStat(ctx context.Context, p database.UpsertPlayerGameweekStatParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStatAfter >= 0 && len(s.gwStats) >= s.failStatAfter {
		return errors.New("stat upsert failed")
	}
	s.gwStats = append(s.gwStats, p)
	return nil
}

func (s *fakeStore) UpsertPlayerSeasonStat(ctx context.Context, p database.UpsertPlayerSeasonStatParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seasonStats = append(s.seasonStats, p)
	return nil
}

func (s *fakeStore) MarkGameweekStatsSynced(ctx context.Context, gameweekID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.synced[gameweekID] = true
	return nil
}

func (s *fakeStore) ResetGameweekStatsSynced(ctx context.Context, gameweekID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[gameweekID] = false
	return nil
}

func (s *fakeStore) ListGameweeks(ctx context.Context) ([]models.Gameweek, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.gameweekRows, nil
}

func (s *fakeStore) GetCurrentGameweek(ctx context.Context) (*models.Gameweek, error) {
	return s.currentGW, nil
}

func (s *fakeStore) ListUnsyncedFinishedGameweeks(ctx context.Context) ([]models.Gameweek, error) {
	return s.unsyncedFinished, nil
}

func (s *fakeStore) ListFixtures(ctx context.Context) ([]models.Fixture, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.fixtureRows, nil
}

func (s *fakeStore) InsertRefreshLog(ctx context.Context, p database.InsertRefreshLogParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLogs = append(s.refreshLogs, p)
	return nil
}

func (s *fakeStore) LatestRefreshLog(ctx context.Context, refreshType models.RefreshType, states []string) (*models.RefreshLogRecord, error) {
	if s.latestLogErr != nil {
		return nil, s.latestLogErr
	}
	return s.latestLog, nil
}

func (s *fakeStore) SetSystemMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *fakeStore) GetSystemMeta(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[key], nil
}

// fakeCache is an un-expiring map cache that records invalidations.
type fakeCache struct {
	mu         sync.Mutex
	entries    map[string][]byte
	ttls       map[string]time.Duration
	scheduled  map[string]time.Time
	patterns   []string
	singleInvs []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:   make(map[string][]byte),
		ttls:      make(map[string]time.Duration),
		scheduled: make(map[string]time.Time),
	}
}

func (c *fakeCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
}

func (c *fakeCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.singleInvs = append(c.singleInvs, key)
}

func (c *fakeCache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return 0
}

func (c *fakeCache) ScheduleInvalidation(key string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduled[key] = at
}
