package services

import (
	"github.com/goalsync/core/internal/config"
)

// Stack bundles the fully wired service graph so the API server and the
// scheduler binary construct it the same way.
type Stack struct {
	States        *StateService
	Bootstrap     *BootstrapService
	Fixtures      *FixturesService
	Live          *LiveService
	GameweekStats *GameweekStatsService
	Players       *PlayersService
	Refresh       *RefreshService
	Contexts      *ContextService
}

// NewStack wires every service over the shared store, upstream client
// and cache.
func NewStack(cfg *config.Config, db Store, client Fetcher, cacheStore Cache) *Stack {
	batchSize := cfg.Refresh.UpsertBatchSize

	states := NewStateService(db)
	bootstrap := NewBootstrapService(client, cacheStore, db, states, batchSize)
	fixtures := NewFixturesService(client, cacheStore, db, states)
	live := NewLiveService(client, cacheStore, db, states, batchSize)
	gwStats := NewGameweekStatsService(client, db, batchSize)

	return &Stack{
		States:        states,
		Bootstrap:     bootstrap,
		Fixtures:      fixtures,
		Live:          live,
		GameweekStats: gwStats,
		Players:       NewPlayersService(client, cacheStore, states),
		Refresh:       NewRefreshService(bootstrap, fixtures, live, gwStats, states, db),
		Contexts:      NewContextService(db, states),
	}
}
