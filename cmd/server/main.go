// Package main is the entry point of the optimizer HTTP service. It serves the
// optimization API and, when a schedule is configured, re-optimizes
// periodically and keeps the run history trimmed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/previ-optimizer/internal/config"
	"github.com/aristath/previ-optimizer/internal/database"
	"github.com/aristath/previ-optimizer/internal/modules/charts"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/previ-optimizer/internal/modules/optimization/handlers"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/aristath/previ-optimizer/internal/modules/universe"
	"github.com/aristath/previ-optimizer/internal/scheduler"
	"github.com/aristath/previ-optimizer/internal/server"
	"github.com/aristath/previ-optimizer/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	optimizeTimeout     = 5 * time.Minute
	shutdownTimeout     = 10 * time.Second
	maintenanceSchedule = "@daily"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("dataset", cfg.DatasetPath).Msg("Starting optimizer service")

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run history database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate run history database")
	}

	repo := runs.NewRepository(db.Conn(), log)
	service := optimization.NewOptimizerService(
		universe.NewLoader(cfg.Universe, log),
		repo,
		cfg.DatasetPath,
		optimization.SettingsFromConfig(cfg.Optimizer),
		log,
	)
	handler := optimizationhandlers.NewHandler(service, repo, charts.NewService(log), log)

	srv := server.New(server.Config{
		Log:      log,
		DB:       db,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Handlers: []server.RouteRegistrar{handler},
	})

	sched, err := newScheduler(cfg, service, repo, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sched != nil {
		sched.Start()
	}

	g.Go(func() error {
		<-ctx.Done()

		if sched != nil {
			sched.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}

// newScheduler registers the periodic jobs, or returns nil when no
// optimization schedule is configured.
func newScheduler(
	cfg *config.Config,
	service *optimization.OptimizerService,
	repo *runs.Repository,
	db *database.DB,
	log zerolog.Logger,
) (*scheduler.Scheduler, error) {
	if cfg.Schedule == "" {
		log.Info().Msg("No optimization schedule configured, scheduler disabled")
		return nil, nil
	}

	if err := scheduler.ValidateSchedule(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid OPTIMIZE_SCHEDULE %q: %w", cfg.Schedule, err)
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Schedule, scheduler.NewOptimizePortfolioJob(service, optimizeTimeout, log)); err != nil {
		return nil, err
	}
	if cfg.Retention > 0 {
		if err := sched.AddJob(maintenanceSchedule, scheduler.NewPruneRunsJob(repo, cfg.Retention)); err != nil {
			return nil, err
		}
	}
	if err := sched.AddJob(maintenanceSchedule, scheduler.NewWALCheckpointJob(db)); err != nil {
		return nil, err
	}
	return sched, nil
}
