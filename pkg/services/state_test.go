package services

import (
	"context"
	"testing"
)

func TestStateService_CurrentStateIncludesLastRefreshes(t *testing.T) {
	store := newFakeStore()
	store.meta["last_refresh:fixtures_refresh"] = "2026-08-29T10:00:00Z"
	store.meta["last_refresh:daily_refresh"] = "2026-08-29T04:00:00Z"

	svc := NewStateService(store)

	details, err := svc.CurrentState(context.Background())
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}

	if got := details.LastRefreshes["fixtures_refresh"]; got != "2026-08-29T10:00:00Z" {
		t.Errorf("fixtures stamp = %q, want the stored value", got)
	}
	if got := details.LastRefreshes["daily_refresh"]; got != "2026-08-29T04:00:00Z" {
		t.Errorf("daily stamp = %q, want the stored value", got)
	}
	if _, ok := details.LastRefreshes["live_refresh"]; ok {
		t.Error("live stamp reported despite never being set")
	}
}
