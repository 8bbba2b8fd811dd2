package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalsync/core/internal/config"
	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/database/pool"
	healthhandler "github.com/goalsync/core/pkg/handlers/health"
	jobshandler "github.com/goalsync/core/pkg/handlers/jobs"
	playershandler "github.com/goalsync/core/pkg/handlers/players"
	refreshhandler "github.com/goalsync/core/pkg/handlers/refresh"
	statehandler "github.com/goalsync/core/pkg/handlers/state"
	"github.com/goalsync/core/pkg/jobs"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/middleware"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/queue"
	"github.com/goalsync/core/pkg/services"
	"github.com/goalsync/core/pkg/upstream"
)

// Server is the refresh API: health, state diagnostics, manual
// triggers, and queue introspection. It owns the full refresh stack so
// a single binary can both serve triggers and work the queue;
// concurrent instances are safe because every refresh runs under a
// database advisory lock.
type Server struct {
	router     *http.ServeMux
	cfg        *config.Config
	logger     *logger.Logger
	dbPool     *pgxpool.Pool
	store      *cache.Store
	supervisor *queue.Supervisor
	handlers   struct {
		health  *healthhandler.Handler
		refresh *refreshhandler.Handler
		state   *statehandler.Handler
		jobs    *jobshandler.Handler
		players *playershandler.Handler
	}
}

// New creates a new server instance and wires the refresh stack.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := pool.New(ctx, cfg.DatabaseURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := testDatabaseConnection(dbPool, log); err != nil {
		dbPool.Close()
		return nil, err
	}

	queries := database.New(dbPool)
	store := cache.NewStore()
	client := upstream.NewClient(cfg)

	stack := services.NewStack(cfg, queries, client, store)

	supervisor := queue.NewSupervisor(supervisorConfig(cfg))
	registrar := jobs.NewRegistrar(supervisor, stack.Contexts)

	lockManager := jobs.NewPostgreSQLLockManager(dbPool)
	for _, job := range jobs.AllJobs(stack.Refresh) {
		guarded := jobs.NewGuardedJob(job, lockManager, nil)
		if err := registrar.Register(guarded); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	server := &Server{
		router:     http.NewServeMux(),
		cfg:        cfg,
		logger:     log,
		dbPool:     dbPool,
		store:      store,
		supervisor: supervisor,
	}

	server.handlers.health = healthhandler.NewHandler(log)
	server.handlers.refresh = refreshhandler.NewHandler(stack.Refresh, registrar, log)
	server.handlers.state = statehandler.NewHandler(stack.States, log)
	server.handlers.jobs = jobshandler.NewHandler(supervisor, log)
	server.handlers.players = playershandler.NewHandler(stack.Players, log)

	server.setupRoutes()

	log.Info().
		Str("action", "db_connected").
		Msg("Database connection pool established")

	return server, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	secret := s.cfg.Server.TriggerSecret

	s.router.HandleFunc("/health", middleware.CORS(s.handlers.health.HealthCheck))

	s.router.HandleFunc("/", middleware.CORS(func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintf(w, "GoalSync Refresh Service - OK"); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
		}
	}))

	// Manual trigger endpoints, one per refresh type
	for _, refreshType := range models.AllRefreshTypes {
		route := "/api/refresh/" + string(refreshType)
		s.router.HandleFunc(route, middleware.CORS(
			middleware.SharedSecret(secret, s.handlers.refresh.TriggerFunc(refreshType))))
	}

	// Diagnostics
	s.router.HandleFunc("/api/state", middleware.CORS(s.handlers.state.CurrentState))
	s.router.HandleFunc("/api/jobs", middleware.CORS(s.handlers.jobs.Counts))
	s.router.HandleFunc("/api/jobs/list", middleware.CORS(s.handlers.jobs.JobsByState))

	// Cached read-through, handles /api/players/{id}/detail
	s.router.HandleFunc("/api/players/", middleware.CORS(s.handlers.players.Detail))
}

// Start starts the queue workers, the schedules, and the HTTP server.
func (s *Server) Start() error {
	s.supervisor.Start()

	s.logger.Info().
		Str("action", "server_start").
		Str("port", s.cfg.Server.Port).
		Msg("Starting refresh API server")

	if err := http.ListenAndServe(":"+s.cfg.Server.Port, s.router); err != nil {
		return fmt.Errorf("server failed to start on port %s: %w", s.cfg.Server.Port, err)
	}

	return nil
}

// Close gracefully shuts down the queue, the cache, and the database
// pool.
func (s *Server) Close() {
	s.supervisor.Stop()
	s.store.Close()
	if s.dbPool != nil {
		s.dbPool.Close()
		s.logger.Info().Msg("Database connection pool closed")
	}
}

// supervisorConfig maps refresh tuning from the environment onto queue
// defaults.
func supervisorConfig(cfg *config.Config) *queue.SupervisorConfig {
	sc := queue.DefaultSupervisorConfig()
	if cfg.Refresh.WorkerMaxAttempts > 0 {
		sc.DefaultMaxAttempts = cfg.Refresh.WorkerMaxAttempts
	}
	if cfg.Refresh.WorkerBackoffBase > 0 {
		sc.DefaultBackoff = time.Duration(cfg.Refresh.WorkerBackoffBase) * time.Second
	}
	if cfg.Refresh.StalledAfterSec > 0 {
		sc.StalledAfter = time.Duration(cfg.Refresh.StalledAfterSec) * time.Second
	}
	if cfg.Refresh.JobRetentionHours > 0 {
		sc.Retention = time.Duration(cfg.Refresh.JobRetentionHours) * time.Hour
	}
	return sc
}

// testDatabaseConnection tests the database connection with retry logic
func testDatabaseConnection(dbPool *pgxpool.Pool, log *logger.Logger) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := dbPool.Ping(ctx)
		cancel()

		if err == nil {
			return nil
		}

		if i == maxRetries-1 {
			return fmt.Errorf("failed to ping database after %d retries: %w", maxRetries, err)
		}

		log.Warn().
			Err(err).
			Int("attempt", i+1).
			Str("action", "db_ping_retry").
			Msg("Retrying database connection")
		time.Sleep(2 * time.Second)
	}

	return nil
}
