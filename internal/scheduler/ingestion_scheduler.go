package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/STRATINT/citypulse/internal/config"
	"github.com/STRATINT/citypulse/internal/ingestion"
	"github.com/STRATINT/citypulse/internal/models"
)

// Runner is the part of the pipeline the scheduler drives.
type Runner interface {
	RunFullCycle(ctx context.Context) models.RunReport
	RunMaintenanceSweep(ctx context.Context) (models.MaintenanceResult, error)
}

// Config controls when the scheduler fires.
type Config struct {
	Interval        time.Duration    // between full ingestion cycles
	MaintenanceTime config.ClockTime // daily, in Location
	Location        *time.Location
	RunOnStart      bool // run one cycle immediately on Start
}

// IngestionScheduler runs full ingestion cycles on an interval and the
// maintenance sweep once a day. Each firing runs in its own goroutine; a
// panic in one is logged and does not stop the schedule.
type IngestionScheduler struct {
	runner   Runner
	config   Config
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewIngestionScheduler creates a new ingestion scheduler
func NewIngestionScheduler(runner Runner, cfg Config, logger *slog.Logger) *IngestionScheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IngestionScheduler{
		runner:   runner,
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the scheduler loop. It blocks until ctx is done or Stop is
// called, then waits for in-flight firings to return.
func (s *IngestionScheduler) Start(ctx context.Context) {
	next := nextDaily(s.now(), s.config.MaintenanceTime, s.config.Location)
	s.logger.Info("Starting ingestion scheduler",
		"interval", s.config.Interval,
		"maintenance_time", s.config.MaintenanceTime.String(),
		"timezone", s.config.Location.String(),
		"next_maintenance", next.Format(time.RFC3339))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	maintenance := time.NewTimer(next.Sub(s.now()))
	defer maintenance.Stop()
	defer s.wg.Wait()

	if s.config.RunOnStart {
		s.fire(ctx, "ingestion_cycle", s.runCycle)
	}

	for {
		select {
		case <-ticker.C:
			s.fire(ctx, "ingestion_cycle", s.runCycle)
		case <-maintenance.C:
			s.fire(ctx, "maintenance_sweep", s.runMaintenance)
			next = nextDaily(s.now(), s.config.MaintenanceTime, s.config.Location)
			maintenance.Reset(next.Sub(s.now()))
			s.logger.Debug("next maintenance sweep scheduled", "at", next.Format(time.RFC3339))
		case <-s.stopChan:
			s.logger.Info("Ingestion scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Ingestion scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *IngestionScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IngestionScheduler) fire(ctx context.Context, job string, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled job panicked",
					"job", job,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn(ctx)
	}()
}

func (s *IngestionScheduler) runCycle(ctx context.Context) {
	report := s.runner.RunFullCycle(ctx)
	switch {
	case report.Message == ingestion.ErrAlreadyRunning.Error():
		s.logger.Info("Skipping scheduled ingestion cycle, previous run still active")
	case !report.Success:
		s.logger.Warn("Scheduled ingestion cycle did not complete", "message", report.Message)
	default:
		s.logger.Info("Scheduled ingestion cycle finished",
			"sources", len(report.Sources),
			"events", report.TotalEventsProcessed,
			"duration", report.Duration)
	}
}

func (s *IngestionScheduler) runMaintenance(ctx context.Context) {
	if _, err := s.runner.RunMaintenanceSweep(ctx); err != nil {
		s.logger.Error("Scheduled maintenance sweep failed", "error", err)
	}
}

// nextDaily returns the first instant strictly after now at which the wall
// clock in loc reads at.
func nextDaily(now time.Time, at config.ClockTime, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour, at.Minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour, at.Minute, 0, 0, loc)
	}
	return next
}
