package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
)

// PlayersService serves per-player element summaries through the cache.
// Unlike the sync services it never touches the persistent store: detail
// payloads are served read-through, cached as the raw upstream bytes.
type PlayersService struct {
	client Fetcher
	cache  Cache
	states *StateService
	logger *logger.Logger
}

func NewPlayersService(client Fetcher, cacheStore Cache, states *StateService) *PlayersService {
	return &PlayersService{
		client: client,
		cache:  cacheStore,
		states: states,
		logger: logger.New("players-service"),
	}
}

// GetDetail returns the raw element-summary payload for one player,
// hitting the upstream only on a cache miss. The second return reports
// whether the payload came from the cache.
func (s *PlayersService) GetDetail(ctx context.Context, playerID int) ([]byte, bool, error) {
	key := cache.KeyPlayerDetail(playerID)
	if raw, ok := s.cache.Get(key); ok {
		return raw, true, nil
	}

	start := time.Now()
	_, raw, err := s.client.GetPlayerDetail(ctx, playerID)
	if err != nil {
		return nil, false, fmt.Errorf("player detail fetch failed: %w", err)
	}

	ttl := cache.TTLFor(models.ResourcePlayerDetail, s.states.Regime(ctx))
	s.cache.Set(key, raw, ttl)

	s.logger.Debug().
		Int("player_id", playerID).
		Dur("duration", time.Since(start)).
		Dur("ttl", ttl).
		Msg("Player detail fetched and cached")

	return raw, false, nil
}
