package services

import (
	"context"
	"testing"
	"time"

	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/models"
)

func testBootstrapSnapshot(deadline time.Time) *models.BootstrapSnapshot {
	return &models.BootstrapSnapshot{
		Events: []models.GameweekSnapshot{
			{ID: 4, Name: "Gameweek 4", IsCurrent: true},
			{ID: 5, Name: "Gameweek 5", IsNext: true, DeadlineTime: &deadline},
		},
		Teams: []models.TeamSnapshot{
			{ID: 1, Name: "Arsenal", ShortName: "ARS", Strength: 5},
			{ID: 2, Name: "Spurs", ShortName: "TOT", Strength: 4},
		},
		Elements: []models.PlayerSnapshot{
			{ID: 302, FirstName: "Bukayo", SecondName: "Saka", TeamID: 1, TotalPoints: 42},
			{ID: 411, FirstName: "Son", SecondName: "Heung-min", TeamID: 2, TotalPoints: 38},
		},
	}
}

func TestBootstrapService_SyncWritesOnChange(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 100)

	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.Changed {
		t.Error("Changed = false on first sync")
	}
	if len(store.teams) != 2 || len(store.players) != 2 || len(store.gameweeks) != 2 {
		t.Errorf("writes = %d teams, %d players, %d gameweeks; want 2 each",
			len(store.teams), len(store.players), len(store.gameweeks))
	}
	if len(store.seasonStats) != 2 {
		t.Errorf("season stat writes = %d, want 2", len(store.seasonStats))
	}

	if _, ok := cacheStore.Get(cache.KeyBootstrap()); !ok {
		t.Error("raw snapshot not cached after sync")
	}
}

func TestBootstrapService_UnchangedSnapshotWritesNothing(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 100)
	ctx := context.Background()

	if _, err := svc.Sync(ctx); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	writesAfterFirst := len(store.teams) + len(store.players) + len(store.gameweeks)

	result, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if result.Changed {
		t.Error("Changed = true for an identical snapshot")
	}
	if got := len(store.teams) + len(store.players) + len(store.gameweeks); got != writesAfterFirst {
		t.Errorf("second sync performed %d extra writes, want 0", got-writesAfterFirst)
	}
}

func TestBootstrapService_ChangedByteTriggersFullPass(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 100)
	ctx := context.Background()

	if _, err := svc.Sync(ctx); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}

	fetcher.bootstrapRaw = []byte(`{"v":2}`)
	result, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !result.Changed {
		t.Error("Changed = false after the raw payload changed")
	}
}

func TestBootstrapService_FailedBatchDoesNotAbortSiblings(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	store.failPlayerID = 302
	cacheStore := newFakeCache()

	// Batch size 1 puts each player in its own batch.
	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 1)

	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.BatchErrors != 1 {
		t.Errorf("BatchErrors = %d, want 1", result.BatchErrors)
	}
	if len(store.players) != 1 {
		t.Errorf("player writes = %d, want 1 (sibling batch must proceed)", len(store.players))
	}
}

func TestBootstrapService_PartialPassNotCached(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	store.failPlayerID = 302
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 1)
	ctx := context.Background()

	result, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.BatchErrors != 1 {
		t.Fatalf("BatchErrors = %d, want 1", result.BatchErrors)
	}
	if _, ok := cacheStore.Get(cache.KeyBootstrap()); ok {
		t.Error("partial pass cached the raw snapshot; failed rows would not retry before the TTL")
	}

	// Once the store recovers the next cycle sees a cache miss and runs
	// the full pass, picking up the row that failed.
	store.failPlayerID = -1
	result, err = svc.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !result.Changed {
		t.Error("Changed = false after a partial pass, want a full re-run")
	}
	if len(store.players) != 3 {
		t.Errorf("player writes = %d, want 3 (1 from the partial pass, 2 from the re-run)", len(store.players))
	}
	if _, ok := cacheStore.Get(cache.KeyBootstrap()); !ok {
		t.Error("clean pass did not cache the raw snapshot")
	}
}

func TestBootstrapService_SchedulesDeadlineInvalidations(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 100)

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if at, ok := cacheStore.scheduled[cache.KeyGameweekFixtures(5)]; !ok || !at.Equal(deadline) {
		t.Errorf("gameweek 5 fixtures invalidation scheduled at %v, want %v", at, deadline)
	}
	// The raw bootstrap expires at the earliest future deadline.
	if at, ok := cacheStore.scheduled[cache.KeyBootstrap()]; !ok || !at.Equal(deadline) {
		t.Errorf("bootstrap invalidation scheduled at %v, want %v", at, deadline)
	}
	// Gameweek 4 has no future deadline; nothing scheduled for it.
	if _, ok := cacheStore.scheduled[cache.KeyGameweekFixtures(4)]; ok {
		t.Error("invalidation scheduled for a gameweek without a future deadline")
	}
}

func TestBootstrapService_InvalidatesEnrichedViews(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour)
	fetcher := &fakeFetcher{
		bootstrap:    testBootstrapSnapshot(deadline),
		bootstrapRaw: []byte(`{"v":1}`),
	}
	store := newFakeStore()
	cacheStore := newFakeCache()

	svc := NewBootstrapService(fetcher, cacheStore, store, NewStateService(store), 100)

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	found := false
	for _, p := range cacheStore.patterns {
		if p == cache.PatternEnrichedPlayers() {
			found = true
		}
	}
	if !found {
		t.Error("enriched player views not invalidated after bootstrap change")
	}
}
