package services

import (
	"context"
	"errors"
	"testing"

	"github.com/goalsync/core/pkg/models"
)

func TestGameweekStatsService_SyncFinished(t *testing.T) {
	fetcher := &fakeFetcher{
		live: map[int]*models.LiveGameweekSnapshot{
			3: testLiveSnapshot(),
		},
		liveRaw: map[int][]byte{3: []byte(`{}`)},
	}
	store := newFakeStore()
	store.unsyncedFinished = []models.Gameweek{{ID: 3, Finished: true}}

	svc := NewGameweekStatsService(fetcher, store, 100)

	result, err := svc.SyncFinished(context.Background())
	if err != nil {
		t.Fatalf("SyncFinished() error = %v", err)
	}
	if len(result.GameweeksSynced) != 1 || result.GameweeksSynced[0] != 3 {
		t.Errorf("GameweeksSynced = %v, want [3]", result.GameweeksSynced)
	}
	if !store.synced[3] {
		t.Error("gameweek 3 not marked synced after a clean pass")
	}
	if result.RowsAffected != 2 {
		t.Errorf("RowsAffected = %d, want 2", result.RowsAffected)
	}
}

func TestGameweekStatsService_NothingToSync(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeStore()

	svc := NewGameweekStatsService(fetcher, store, 100)

	result, err := svc.SyncFinished(context.Background())
	if err != nil {
		t.Fatalf("SyncFinished() error = %v", err)
	}
	if len(result.GameweeksSynced) != 0 || len(result.GameweeksFailed) != 0 {
		t.Errorf("result = %+v, want empty pass", result)
	}
	if fetcher.liveCalls != 0 {
		t.Errorf("upstream fetched %d times with nothing pending, want 0", fetcher.liveCalls)
	}
}

func TestGameweekStatsService_BatchFailureLeavesFlagUnset(t *testing.T) {
	fetcher := &fakeFetcher{
		live:    map[int]*models.LiveGameweekSnapshot{3: testLiveSnapshot()},
		liveRaw: map[int][]byte{3: []byte(`{}`)},
	}
	store := newFakeStore()
	store.unsyncedFinished = []models.Gameweek{{ID: 3, Finished: true}}
	store.failStatAfter = 1

	// Batch size 1: the second batch fails after the first landed.
	svc := NewGameweekStatsService(fetcher, store, 1)

	result, err := svc.SyncFinished(context.Background())
	if err != nil {
		t.Fatalf("SyncFinished() error = %v", err)
	}
	if len(result.GameweeksFailed) != 1 || result.GameweeksFailed[0] != 3 {
		t.Errorf("GameweeksFailed = %v, want [3]", result.GameweeksFailed)
	}
	if store.synced[3] {
		t.Error("flag set despite a failed batch; gameweek no longer eligible for retry")
	}
}

func TestGameweekStatsService_MarkFailureReported(t *testing.T) {
	fetcher := &fakeFetcher{
		live:    map[int]*models.LiveGameweekSnapshot{3: testLiveSnapshot()},
		liveRaw: map[int][]byte{3: []byte(`{}`)},
	}
	store := newFakeStore()
	store.unsyncedFinished = []models.Gameweek{{ID: 3, Finished: true}}
	store.markErr = errors.New("flag update failed")

	svc := NewGameweekStatsService(fetcher, store, 100)

	result, err := svc.SyncFinished(context.Background())
	if err != nil {
		t.Fatalf("SyncFinished() error = %v", err)
	}
	if len(result.GameweeksFailed) != 1 {
		t.Errorf("GameweeksFailed = %v, want the gameweek whose flag write failed", result.GameweeksFailed)
	}
}

func TestGameweekStatsService_FailureIsolatedPerGameweek(t *testing.T) {
	fetcher := &fakeFetcher{
		live: map[int]*models.LiveGameweekSnapshot{
			// Gameweek 2 has no snapshot, so its fetch fails.
			3: testLiveSnapshot(),
		},
		liveRaw: map[int][]byte{3: []byte(`{}`)},
	}
	store := newFakeStore()
	store.unsyncedFinished = []models.Gameweek{
		{ID: 2, Finished: true},
		{ID: 3, Finished: true},
	}

	svc := NewGameweekStatsService(fetcher, store, 100)

	result, err := svc.SyncFinished(context.Background())
	if err != nil {
		t.Fatalf("SyncFinished() error = %v", err)
	}
	if len(result.GameweeksFailed) != 1 || result.GameweeksFailed[0] != 2 {
		t.Errorf("GameweeksFailed = %v, want [2]", result.GameweeksFailed)
	}
	if len(result.GameweeksSynced) != 1 || result.GameweeksSynced[0] != 3 {
		t.Errorf("GameweeksSynced = %v, want [3] despite gameweek 2 failing", result.GameweeksSynced)
	}
}

func TestGameweekStatsService_Resync(t *testing.T) {
	fetcher := &fakeFetcher{
		live:    map[int]*models.LiveGameweekSnapshot{3: testLiveSnapshot()},
		liveRaw: map[int][]byte{3: []byte(`{}`)},
	}
	store := newFakeStore()
	store.synced[3] = true

	svc := NewGameweekStatsService(fetcher, store, 100)

	rows, err := svc.Resync(context.Background(), 3)
	if err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if rows != 2 {
		t.Errorf("Resync() rows = %d, want 2", rows)
	}
	if !store.synced[3] {
		t.Error("flag not re-set after resync")
	}
}
