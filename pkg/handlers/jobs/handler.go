package jobs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models/api"
	"github.com/goalsync/core/pkg/queue"
)

// Handler exposes read-only queue introspection endpoints.
type Handler struct {
	supervisor *queue.Supervisor
	logger     *logger.Logger
}

// NewHandler creates a new jobs handler.
func NewHandler(supervisor *queue.Supervisor, log *logger.Logger) *Handler {
	return &Handler{
		supervisor: supervisor,
		logger:     log,
	}
}

// Counts handles GET /api/jobs. It tallies job states across every
// registered queue.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	queues := make(map[string]api.QueueCounts)
	for _, name := range h.supervisor.QueueNames() {
		counts, err := h.supervisor.JobCounts(name)
		if err != nil {
			continue
		}
		queues[name] = api.QueueCounts{
			Waiting:   counts.Waiting,
			Active:    counts.Active,
			Completed: counts.Completed,
			Failed:    counts.Failed,
			Stalled:   counts.Stalled,
		}
	}

	h.writeJSON(w, http.StatusOK, api.QueueCountsResponse{
		Queues:    queues,
		Timestamp: time.Now().UTC(),
	})
}

// JobsByState handles GET /api/jobs/list?queue=X&state=Y.
func (h *Handler) JobsByState(w http.ResponseWriter, r *http.Request) {
	queueName := r.URL.Query().Get("queue")
	stateName := r.URL.Query().Get("state")
	if queueName == "" || stateName == "" {
		h.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Success: false,
			Message: "queue and state query parameters are required",
		})
		return
	}

	records, err := h.supervisor.JobsByState(queueName, queue.State(stateName))
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, api.ErrorResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	out := make([]api.QueueJobResponse, 0, len(records))
	for _, j := range records {
		out = append(out, api.QueueJobResponse{
			ID:         j.ID.String(),
			Type:       j.Type,
			State:      string(j.State),
			Priority:   j.Priority,
			Attempt:    j.Attempt,
			EnqueuedAt: j.EnqueuedAt,
			RunAt:      j.RunAt,
			StartedAt:  j.StartedAt,
			FinishedAt: j.FinishedAt,
			LastError:  j.LastError,
		})
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "response_encode_failed").
			Msg("Failed to encode jobs response")
	}
}
