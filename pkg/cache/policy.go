package cache

import (
	"fmt"
	"time"

	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/state"
)

// TTL tiers. Live-oriented resources drop to the short tier whenever a
// match is in play; static resources always stay on a long tier with
// only a moderate reduction during live play.
const (
	ttlLiveShort     = 2 * time.Minute
	ttlFixturesShort = 5 * time.Minute
	ttlLiveLong      = time.Hour
	ttlFixturesLong  = 6 * time.Hour
	ttlBootstrapLive = 12 * time.Hour
	ttlBootstrapLong = 24 * time.Hour
	ttlPlayerDetail  = 6 * time.Hour
)

// TTLFor is the pure TTL policy ttl(resourceKind, regime).
func TTLFor(kind models.ResourceKind, regime state.Regime) time.Duration {
	live := regime == state.RegimeLiveMatch || regime == state.RegimePostMatch

	switch kind {
	case models.ResourceLiveGameweek:
		if live {
			return ttlLiveShort
		}
		return ttlLiveLong
	case models.ResourceFixtures:
		if live {
			return ttlFixturesShort
		}
		return ttlFixturesLong
	case models.ResourceBootstrap:
		if live {
			return ttlBootstrapLive
		}
		return ttlBootstrapLong
	case models.ResourcePlayerDetail:
		return ttlPlayerDetail
	default:
		return ttlPlayerDetail
	}
}

// Cache key namespace: resource:identifier[:qualifier].

// KeyBootstrap is the raw bootstrap snapshot key.
func KeyBootstrap() string {
	return "bootstrap:static"
}

// KeyFixtures is the all-fixtures snapshot key.
func KeyFixtures() string {
	return "fixtures:all"
}

// KeyGameweekFixtures is the per-gameweek fixtures key.
func KeyGameweekFixtures(gameweekID int) string {
	return fmt.Sprintf("fixtures:gameweek:%d", gameweekID)
}

// KeyLiveGameweek is the per-gameweek live stats key.
func KeyLiveGameweek(gameweekID int) string {
	return fmt.Sprintf("live:gameweek:%d", gameweekID)
}

// KeyPlayerDetail is the per-player detail key.
func KeyPlayerDetail(playerID int) string {
	return fmt.Sprintf("player:detail:%d", playerID)
}

// KeyEnrichedPlayers is the derived enriched-players key, invalidated
// whenever the raw bootstrap changes.
func KeyEnrichedPlayers() string {
	return "players:enriched"
}

// PatternEnrichedPlayers matches every derived player view.
func PatternEnrichedPlayers() string {
	return "players:enriched*"
}

// PatternGameweek matches every key qualified by the given gameweek.
func PatternGameweek(gameweekID int) string {
	return fmt.Sprintf("*:gameweek:%d", gameweekID)
}
