package state

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models/api"
	"github.com/goalsync/core/pkg/services"
)

// Handler exposes the temporal state diagnostic endpoint.
type Handler struct {
	states *services.StateService
	logger *logger.Logger
}

// NewHandler creates a new state handler.
func NewHandler(states *services.StateService, log *logger.Logger) *Handler {
	return &Handler{
		states: states,
		logger: log,
	}
}

type stateResponse struct {
	*services.StateDetails
	Timestamp time.Time `json:"timestamp"`
}

// CurrentState handles GET /api/state. It reports the regime the
// scheduler is operating under and each signal that feeds the
// classification, so operators can see why a cadence is in effect.
func (h *Handler) CurrentState(w http.ResponseWriter, r *http.Request) {
	details, err := h.states.CurrentState(r.Context())
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "state_query_failed").
			Str("endpoint", "/api/state").
			Msg("Failed to compute current state")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Success: false,
			Message: "failed to compute current state",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stateResponse{
		StateDetails: details,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "response_encode_failed").
			Str("endpoint", "/api/state").
			Msg("Failed to encode state response")
	}
}
