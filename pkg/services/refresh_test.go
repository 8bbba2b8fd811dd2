package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goalsync/core/pkg/models"
)

func newTestRefreshService(fetcher *fakeFetcher, store *fakeStore) *RefreshService {
	cacheStore := newFakeCache()
	states := NewStateService(store)
	return NewRefreshService(
		NewBootstrapService(fetcher, cacheStore, store, states, 100),
		NewFixturesService(fetcher, cacheStore, store, states),
		NewLiveService(fetcher, cacheStore, store, states, 100),
		NewGameweekStatsService(fetcher, store, 100),
		states,
		store,
	)
}

func TestRefreshService_LiveSkippedOutsideLiveWindow(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeStore()
	// Current gameweek, no fixtures in play: regular regime.
	store.gameweekRows = []models.Gameweek{{ID: 4, IsCurrent: true}}
	store.currentGW = &models.Gameweek{ID: 4, IsCurrent: true}

	svc := newTestRefreshService(fetcher, store)

	result, err := svc.PerformLiveRefresh(context.Background())
	if err != nil {
		t.Fatalf("PerformLiveRefresh() error = %v", err)
	}
	if result.State != "skipped" {
		t.Errorf("State = %q, want skipped", result.State)
	}
	if fetcher.liveCalls != 0 {
		t.Errorf("upstream fetched %d times while skipped, want 0", fetcher.liveCalls)
	}

	// The skip is still audited.
	if len(store.refreshLogs) != 1 || store.refreshLogs[0].State != "skipped" {
		t.Errorf("refresh logs = %+v, want one skipped entry", store.refreshLogs)
	}
}

func TestRefreshService_LiveRunsDuringLiveMatch(t *testing.T) {
	now := time.Now()
	kickoff := now.Add(-30 * time.Minute)
	gw := 4

	fetcher := &fakeFetcher{
		live:    map[int]*models.LiveGameweekSnapshot{4: testLiveSnapshot()},
		liveRaw: map[int][]byte{4: []byte(`{"elements":[1]}`)},
	}
	store := newFakeStore()
	store.gameweekRows = []models.Gameweek{{ID: 4, IsCurrent: true}}
	store.fixtureRows = []models.Fixture{{ID: 7, GameweekID: &gw, KickoffTime: &kickoff}}
	store.currentGW = &models.Gameweek{ID: 4, IsCurrent: true}

	svc := newTestRefreshService(fetcher, store)

	result, err := svc.PerformLiveRefresh(context.Background())
	if err != nil {
		t.Fatalf("PerformLiveRefresh() error = %v", err)
	}
	if result.State != "refreshed" {
		t.Errorf("State = %q, want refreshed", result.State)
	}
	if !result.Refreshed {
		t.Error("Refreshed = false after a changed live sync")
	}
}

func TestRefreshService_FixturesRefreshLogsAndSetsMeta(t *testing.T) {
	fetcher := &fakeFetcher{
		fixtures:    testFixturesSnapshot(false),
		fixturesRaw: []byte(`[{"id":7}]`),
	}
	store := newFakeStore()

	svc := newTestRefreshService(fetcher, store)

	result, err := svc.PerformFixturesRefresh(context.Background())
	if err != nil {
		t.Fatalf("PerformFixturesRefresh() error = %v", err)
	}
	if result.State != "synced" {
		t.Errorf("State = %q, want synced", result.State)
	}

	if len(store.refreshLogs) != 1 {
		t.Fatalf("refresh logs = %d, want 1", len(store.refreshLogs))
	}
	if store.refreshLogs[0].Type != models.RefreshFixtures || store.refreshLogs[0].State != "synced" {
		t.Errorf("log entry = %+v", store.refreshLogs[0])
	}
	if store.meta["last_refresh:fixtures_refresh"] == "" {
		t.Error("last refresh meta not recorded")
	}
}

func TestRefreshService_ErrorStateOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{fixturesErr: errors.New("upstream down")}
	store := newFakeStore()

	svc := newTestRefreshService(fetcher, store)

	result, err := svc.PerformFixturesRefresh(context.Background())
	if err == nil {
		t.Fatal("PerformFixturesRefresh() error = nil, want fetch failure")
	}
	if result == nil || result.State != "error" {
		t.Errorf("result = %+v, want error state envelope", result)
	}
	if len(store.refreshLogs) != 1 || store.refreshLogs[0].State != "error" {
		t.Errorf("refresh logs = %+v, want one error entry", store.refreshLogs)
	}
}

func TestRefreshService_DailyPartialOnSingleFailure(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
		fixturesErr:  errors.New("upstream down"),
	}
	store := newFakeStore()

	svc := newTestRefreshService(fetcher, store)

	result, err := svc.PerformDailyRefresh(context.Background())
	if err != nil {
		t.Fatalf("PerformDailyRefresh() error = %v, want partial success without error", err)
	}
	if result.State != "partial" {
		t.Errorf("State = %q, want partial", result.State)
	}
	// The bootstrap step ran despite the fixtures failure.
	if len(store.teams) == 0 {
		t.Error("bootstrap step skipped after fixtures failure")
	}
	if _, ok := result.Details["fixtures"]; !ok {
		t.Error("fixtures failure not recorded in details")
	}
}

func TestRefreshService_DailyFailsWhenEverythingFails(t *testing.T) {
	fetcher := &fakeFetcher{
		bootstrapErr: errors.New("down"),
		fixturesErr:  errors.New("down"),
	}
	store := newFakeStore()
	store.unsyncedFinished = []models.Gameweek{{ID: 3, Finished: true}}
	fetcher.liveErr = errors.New("down")

	svc := newTestRefreshService(fetcher, store)

	// All three steps fail only when the stats step errors as a whole;
	// a per-gameweek failure is a partial, not a step error.
	result, err := svc.PerformDailyRefresh(context.Background())
	if err != nil {
		t.Fatalf("PerformDailyRefresh() error = %v", err)
	}
	if result.State != "partial" {
		t.Errorf("State = %q, want partial", result.State)
	}
}

func TestRefreshService_PerformDispatch(t *testing.T) {
	fetcher := &fakeFetcher{
		fixtures:    testFixturesSnapshot(false),
		fixturesRaw: []byte(`[{"id":7}]`),
	}
	store := newFakeStore()

	svc := newTestRefreshService(fetcher, store)
	ctx := context.Background()

	if _, err := svc.Perform(ctx, models.RefreshFixtures); err != nil {
		t.Errorf("Perform(fixtures) error = %v", err)
	}
	if _, err := svc.Perform(ctx, models.RefreshType("bogus")); err == nil {
		t.Error("Perform() accepted an unknown refresh type")
	}
}
