package players

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models/api"
	"github.com/goalsync/core/pkg/services"
)

type Handler struct {
	players *services.PlayersService
	logger  *logger.Logger
}

func NewHandler(players *services.PlayersService, log *logger.Logger) *Handler {
	return &Handler{
		players: players,
		logger:  log,
	}
}

// Detail handles GET /api/players/{id}/detail. The payload is the raw
// upstream element summary, served read-through from the cache.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/players/")
	idStr = strings.TrimSuffix(idStr, "/detail")
	playerID, err := strconv.Atoi(idStr)
	if err != nil || playerID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}

	raw, fromCache, err := h.players.GetDetail(r.Context(), playerID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int("player_id", playerID).
			Msg("Failed to fetch player detail")
		h.writeError(w, http.StatusBadGateway, "failed to fetch player detail")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if fromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	if _, err := w.Write(raw); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write player detail response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{
		Success: false,
		Message: message,
	}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
