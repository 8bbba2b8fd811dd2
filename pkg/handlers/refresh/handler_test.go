package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/models/api"
	"github.com/goalsync/core/pkg/services"
)

type fakePerformer struct {
	result *services.RefreshResult
	err    error
	calls  int
}

func (f *fakePerformer) Perform(ctx context.Context, refreshType models.RefreshType) (*services.RefreshResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeEnqueuer struct {
	id        uuid.UUID
	err       error
	overrides *services.ContextOverrides
}

func (f *fakeEnqueuer) Trigger(ctx context.Context, refreshType models.RefreshType, overrides *services.ContextOverrides) (uuid.UUID, error) {
	f.overrides = overrides
	return f.id, f.err
}

func TestHandler_TriggerSync(t *testing.T) {
	performer := &fakePerformer{
		result: &services.RefreshResult{Refreshed: true, State: "synced"},
	}
	h := NewHandler(performer, &fakeEnqueuer{}, logger.New("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/fixtures_refresh", nil)
	rec := httptest.NewRecorder()

	h.TriggerFunc(models.RefreshFixtures)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp api.TriggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || !resp.Refreshed || resp.State != "synced" {
		t.Errorf("response = %+v", resp)
	}
	if performer.calls != 1 {
		t.Errorf("Perform called %d times, want 1", performer.calls)
	}
}

func TestHandler_TriggerFailureStillJSON(t *testing.T) {
	performer := &fakePerformer{err: errors.New("upstream down")}
	h := NewHandler(performer, &fakeEnqueuer{}, logger.New("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/live_refresh", nil)
	rec := httptest.NewRecorder()

	h.TriggerFunc(models.RefreshLive)(rec, req)

	// A failed refresh is still a JSON envelope, not a bare 5xx.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp api.TriggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.State != "error" || resp.Message == "" {
		t.Errorf("response = %+v, want failed envelope with message", resp)
	}
}

func TestHandler_TriggerRejectsGet(t *testing.T) {
	h := NewHandler(&fakePerformer{}, &fakeEnqueuer{}, logger.New("test"))

	req := httptest.NewRequest(http.MethodGet, "/api/refresh/live_refresh", nil)
	rec := httptest.NewRecorder()

	h.TriggerFunc(models.RefreshLive)(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandler_TriggerAsync(t *testing.T) {
	enqueuer := &fakeEnqueuer{id: uuid.New()}
	h := NewHandler(&fakePerformer{}, enqueuer, logger.New("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/gameweek_stats_refresh?async=true&gameweek=3", nil)
	rec := httptest.NewRecorder()

	h.TriggerFunc(models.RefreshGameweekStats)(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	var resp api.TriggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != enqueuer.id.String() || resp.State != "queued" {
		t.Errorf("response = %+v", resp)
	}
	if enqueuer.overrides == nil || enqueuer.overrides.GameweekID == nil || *enqueuer.overrides.GameweekID != 3 {
		t.Errorf("overrides = %+v, want gameweek 3", enqueuer.overrides)
	}
}
