package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/STRATINT/citypulse/internal/api"
	"github.com/STRATINT/citypulse/internal/app"
	"github.com/STRATINT/citypulse/internal/config"
	"github.com/STRATINT/citypulse/internal/logging"
	"github.com/STRATINT/citypulse/internal/metrics"
	"github.com/STRATINT/citypulse/internal/scheduler"
	"github.com/STRATINT/citypulse/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting citypulse", "store", cfg.Database.Driver, "city", cfg.Ingestion.City)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := app.New(ctx, cfg, collector, logger)
	if err != nil {
		logger.Error("failed to initialise service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", server.HealthHandler(svc.Store))
	mux.Handle("/metrics", collector.Handler())

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, admin endpoints will reject every request")
	}
	deps := api.RouterDeps{
		Manager:   svc.Manager,
		Pipeline:  svc.Pipeline,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logging.Component(logger, "api"),
	}
	if svc.Errors != nil {
		deps.Errors = svc.Errors
	}
	if svc.Activity != nil {
		deps.Activity = svc.Activity
	}
	api.SetupRoutes(mux, deps)

	// Start scheduler
	ingestionScheduler := scheduler.NewIngestionScheduler(svc.Pipeline, scheduler.Config{
		Interval:        cfg.Ingestion.Interval,
		MaintenanceTime: cfg.Ingestion.MaintenanceTime,
		Location:        cfg.Ingestion.Location,
		RunOnStart:      cfg.Ingestion.RunOnStart,
	}, logging.Component(logger, "scheduler"))

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		ingestionScheduler.Start(ctx)
	}()

	// Start server
	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("citypulse started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	ingestionScheduler.Stop()
	cancel()
	<-schedulerDone
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
