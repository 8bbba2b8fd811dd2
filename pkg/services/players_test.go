package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/models"
)

func TestPlayersService_GetDetailReadThrough(t *testing.T) {
	raw := []byte(`{"history":[{"element":302,"round":4,"total_points":12}]}`)
	fetcher := &fakeFetcher{
		detail:    &models.PlayerDetailSnapshot{},
		detailRaw: raw,
	}
	store := newFakeStore()
	cacheStore := newFakeCache()
	svc := NewPlayersService(fetcher, cacheStore, NewStateService(store))

	got, fromCache, err := svc.GetDetail(context.Background(), 302)
	if err != nil {
		t.Fatalf("GetDetail() error = %v", err)
	}
	if fromCache {
		t.Error("first call should miss the cache")
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("GetDetail() = %s, want raw payload", got)
	}
	if ttl := cacheStore.ttls[cache.KeyPlayerDetail(302)]; ttl.String() != "6h0m0s" {
		t.Errorf("cached ttl = %v, want 6h", ttl)
	}

	got, fromCache, err = svc.GetDetail(context.Background(), 302)
	if err != nil {
		t.Fatalf("GetDetail() second call error = %v", err)
	}
	if !fromCache {
		t.Error("second call should hit the cache")
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("GetDetail() second call = %s, want raw payload", got)
	}
	if fetcher.detailCalls != 1 {
		t.Errorf("detail fetched %d times, want 1", fetcher.detailCalls)
	}
}

func TestPlayersService_GetDetailFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{detailErr: errors.New("upstream down")}
	svc := NewPlayersService(fetcher, newFakeCache(), NewStateService(newFakeStore()))

	if _, _, err := svc.GetDetail(context.Background(), 302); err == nil {
		t.Fatal("GetDetail() expected error")
	}
}
