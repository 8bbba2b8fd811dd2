package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models/api"
)

// SharedSecret rejects trigger requests that do not carry the shared
// secret in the X-Trigger-Secret header. With an empty configured
// secret the check is disabled, which is only acceptable for local
// development.
func SharedSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	log := logger.New("auth")

	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next(w, r)
			return
		}

		provided := r.Header.Get("X-Trigger-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			log.Warn().
				Str("action", "trigger_rejected").
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Trigger request rejected, bad or missing secret")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if err := json.NewEncoder(w).Encode(api.ErrorResponse{
				Success: false,
				Message: "unauthorized",
			}); err != nil {
				log.Error().Err(err).Msg("Failed to encode auth response")
			}
			return
		}

		next(w, r)
	}
}
