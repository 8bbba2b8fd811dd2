package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/models/api"
	"github.com/goalsync/core/pkg/services"
)

// Performer runs a refresh synchronously.
type Performer interface {
	Perform(ctx context.Context, refreshType models.RefreshType) (*services.RefreshResult, error)
}

// Enqueuer submits a refresh to the background queue instead of running
// it inline.
type Enqueuer interface {
	Trigger(ctx context.Context, refreshType models.RefreshType, overrides *services.ContextOverrides) (uuid.UUID, error)
}

// Handler exposes the manual refresh trigger endpoints. By default a
// trigger runs the refresh inline and reports the outcome; with
// async=true it enqueues the refresh and returns the job id. Either
// way the response is always the JSON envelope, never a bare 5xx, so
// monitoring can tell a failed refresh apart from a dead service.
type Handler struct {
	performer Performer
	enqueuer  Enqueuer
	logger    *logger.Logger
}

// NewHandler creates a new refresh trigger handler.
func NewHandler(performer Performer, enqueuer Enqueuer, log *logger.Logger) *Handler {
	return &Handler{
		performer: performer,
		enqueuer:  enqueuer,
		logger:    log,
	}
}

// TriggerFunc returns the http.HandlerFunc for one refresh type.
func (h *Handler) TriggerFunc(refreshType models.RefreshType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{
				Success: false,
				Message: "method not allowed",
			})
			return
		}

		if r.URL.Query().Get("async") == "true" {
			h.triggerAsync(w, r, refreshType)
			return
		}

		h.triggerSync(w, r, refreshType)
	}
}

func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request, refreshType models.RefreshType) {
	start := time.Now()

	result, err := h.performer.Perform(r.Context(), refreshType)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "manual_refresh_failed").
			Str("refresh_type", string(refreshType)).
			Dur("duration", time.Since(start)).
			Msg("Manual refresh failed")
		h.writeJSON(w, http.StatusOK, api.TriggerResponse{
			Success:   false,
			State:     "error",
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	h.logger.Info().
		Str("action", "manual_refresh").
		Str("refresh_type", string(refreshType)).
		Str("state", result.State).
		Bool("refreshed", result.Refreshed).
		Dur("duration", time.Since(start)).
		Msg("Manual refresh completed")

	h.writeJSON(w, http.StatusOK, api.TriggerResponse{
		Success:   true,
		Refreshed: result.Refreshed,
		State:     result.State,
		Details:   result.Details,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) triggerAsync(w http.ResponseWriter, r *http.Request, refreshType models.RefreshType) {
	overrides := parseOverrides(r)

	jobID, err := h.enqueuer.Trigger(r.Context(), refreshType, overrides)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "manual_enqueue_failed").
			Str("refresh_type", string(refreshType)).
			Msg("Failed to enqueue refresh")
		h.writeJSON(w, http.StatusOK, api.TriggerResponse{
			Success:   false,
			State:     "error",
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	h.writeJSON(w, http.StatusAccepted, api.TriggerResponse{
		Success:   true,
		JobID:     jobID.String(),
		State:     "queued",
		Timestamp: time.Now().UTC(),
	})
}

// parseOverrides reads optional gameweek and priority overrides from
// the query string. Bad values are ignored rather than rejected.
func parseOverrides(r *http.Request) *services.ContextOverrides {
	var overrides services.ContextOverrides
	if raw := r.URL.Query().Get("gameweek"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil && id > 0 {
			overrides.GameweekID = &id
		}
	}
	if raw := r.URL.Query().Get("priority"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			overrides.Priority = &p
		}
	}
	if overrides.GameweekID == nil && overrides.Priority == nil {
		return nil
	}
	return &overrides
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "response_encode_failed").
			Msg("Failed to encode trigger response")
	}
}
