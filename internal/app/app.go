// Package app assembles the catalog store, lifecycle manager and ingestion
// pipeline from configuration. Both the HTTP server and the one-shot runner
// start from here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/STRATINT/citypulse/internal/cloudsql"
	"github.com/STRATINT/citypulse/internal/config"
	"github.com/STRATINT/citypulse/internal/database"
	"github.com/STRATINT/citypulse/internal/eventmanager"
	"github.com/STRATINT/citypulse/internal/ingestion"
	"github.com/STRATINT/citypulse/internal/logging"
	"github.com/STRATINT/citypulse/internal/metrics"
)

const migrationsDir = "./migrations"

// App is a wired instance of the service.
type App struct {
	Store    ingestion.EventRepository
	Manager  *eventmanager.LifecycleManager
	Pipeline *ingestion.Pipeline

	// Ledgers are nil for the in-memory store.
	Errors   database.IngestionErrorRepository
	Activity *database.ActivityLogRepository

	db *sql.DB
}

// New opens the configured store and builds the pipeline over the configured
// sources. collector may be nil.
func New(ctx context.Context, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	a := &App{}
	if err := a.openStore(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}

	// Interfaces stay nil rather than holding typed nil pointers.
	var (
		activity    ingestion.ActivityLogger
		managerLog  eventmanager.ActivityLogger
		recorder    ingestion.Recorder
		transitions eventmanager.TransitionRecorder
	)
	if a.Activity != nil {
		activity = a.Activity
		managerLog = a.Activity
	}
	if collector != nil {
		recorder = collector
		transitions = collector
	}

	a.Manager = eventmanager.NewLifecycleManager(
		a.Store,
		managerLog,
		transitions,
		logging.Component(logger, "lifecycle"),
		eventmanager.LifecycleConfig{
			CutoffAge:         cfg.Ingestion.CutoffAge,
			AgingWindow:       cfg.Ingestion.AgingWindow,
			ActivityRetention: cfg.Ingestion.ActivityRetention,
		},
	)

	deps := ingestion.AdapterDeps{
		Merger: ingestion.NewMerger(a.Store, logging.Component(logger, "merger")),
		Marker: a.Manager,
		Normalizer: ingestion.Normalizer{
			City:     cfg.Ingestion.City,
			Currency: cfg.Ingestion.Currency,
			Location: cfg.Ingestion.Location,
		},
		Errors:  a.Errors,
		Metrics: recorder,
		Logger:  logging.Component(logger, "adapter"),
	}

	adapters, err := ingestion.BuildAdapters(cfg.Sources, deps, ingestion.FetchOptions{
		Timeout:    cfg.Ingestion.FetchTimeout,
		ChromePath: cfg.Ingestion.ChromePath,
		Retries:    cfg.Ingestion.FetchRetries,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build adapters: %w", err)
	}

	a.Pipeline = ingestion.NewPipeline(
		adapters,
		a.Store,
		a.Manager,
		activity,
		recorder,
		logging.Component(logger, "pipeline"),
		ingestion.PipelineConfig{SourcePacing: cfg.Ingestion.SourcePacing},
	)

	logger.Info("pipeline configured",
		"driver", cfg.Database.Driver,
		"sources", len(adapters),
		"city", cfg.Ingestion.City)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to database", "url", cloudsql.Redact(cfg.URL))
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.URL
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		// Migration failures are logged, not fatal.
		if err := database.RunMigrations(ctx, db, migrationsDir, logger); err != nil {
			logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}
		a.db = db
		a.Store = database.NewPostgresEventRepository(db)
		a.Errors = database.NewPostgresIngestionErrorRepository(db)
		a.Activity = database.NewActivityLogRepository(db)

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.db = db
		a.Store = database.NewSQLiteEventRepository(db)
		a.Errors = database.NewSQLiteIngestionErrorRepository(db)
		a.Activity = database.NewSQLiteActivityLogRepository(db)

	case config.DriverMemory:
		logger.Warn("using in-memory catalog; entries are lost on restart")
		a.Store = ingestion.NewMemoryEventRepository()

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	return nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
