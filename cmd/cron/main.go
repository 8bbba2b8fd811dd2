package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/goalsync/core/internal/config"
	"github.com/goalsync/core/pkg/cache"
	"github.com/goalsync/core/pkg/database"
	"github.com/goalsync/core/pkg/database/pool"
	"github.com/goalsync/core/pkg/jobs"
	"github.com/goalsync/core/pkg/logger"
	"github.com/goalsync/core/pkg/models"
	"github.com/goalsync/core/pkg/queue"
	"github.com/goalsync/core/pkg/services"
	"github.com/goalsync/core/pkg/upstream"
)

func main() {
	// Parse command line flags
	var (
		jobName = flag.String("job", "", "Run specific job once (bootstrap_refresh, fixtures_refresh, live_refresh, gameweek_stats_refresh, daily_refresh)")
		once    = flag.Bool("once", false, "Run job once and exit")
	)
	flag.Parse()

	logger.SetupLogger()

	cfg := config.Load()

	// Connect to database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := pool.New(ctx, cfg.DatabaseURL(), nil)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize services
	queries := database.New(db)
	store := cache.NewStore()
	defer store.Close()
	client := upstream.NewClient(cfg)
	stack := services.NewStack(cfg, queries, client, store)

	// Wrap every refresh job in an advisory lock guard so overlapping
	// schedulers never run the same refresh type concurrently
	lockManager := jobs.NewPostgreSQLLockManager(db)
	guarded := make(map[models.RefreshType]jobs.Job)
	for _, job := range jobs.AllJobs(stack.Refresh) {
		guarded[job.Type()] = jobs.NewGuardedJob(job, lockManager, nil)
	}

	// Handle single job execution
	if *once && *jobName != "" {
		runCtx, runCancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer runCancel()

		job, ok := guarded[models.RefreshType(*jobName)]
		if !ok {
			log.Fatalf("Unknown job: %s. Available jobs: %v", *jobName, models.AllRefreshTypes)
		}

		log.Printf("Running %s once...", *jobName)
		result, err := job.Execute(runCtx)
		if err != nil {
			log.Fatalf("Failed to execute %s: %v", *jobName, err)
		}
		log.Printf("%s completed with state %q", *jobName, result.State)
		return
	}

	// Build the queue supervisor and register the recurring schedules
	supervisor := queue.NewSupervisor(supervisorConfig(cfg))
	registrar := jobs.NewRegistrar(supervisor, stack.Contexts)
	for _, job := range guarded {
		if err := registrar.Register(job); err != nil {
			log.Fatalf("Failed to register job %s: %v", job.Name(), err)
		}
	}

	supervisor.Start()
	log.Printf("Refresh scheduler started with %d queues", len(supervisor.QueueNames()))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down refresh scheduler...")
	supervisor.Stop()
	log.Println("Refresh scheduler stopped")
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
