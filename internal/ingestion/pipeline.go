package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/STRATINT/citypulse/internal/models"
)

// ErrAlreadyRunning is reported when a run is requested while another holds
// the pipeline.
var ErrAlreadyRunning = errors.New("scraping already in progress")

// ErrSourceNotFound is matched by errors for a source name that is not
// configured.
var ErrSourceNotFound = errors.New("not found")

// Maintainer runs the periodic catalog sweep: cleanup of long-inactive
// entries followed by the status sweep.
type Maintainer interface {
	RunMaintenance(ctx context.Context) (models.MaintenanceResult, error)
}

// ActivityLogger persists one line per pipeline activity.
type ActivityLogger interface {
	Log(ctx context.Context, log models.ActivityLog) error
}

// Pinger verifies the catalog store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pipeline runs source adapters against the catalog. At most one full cycle
// or single-source run is active at a time.
type Pipeline struct {
	adapters   []Adapter
	store      Pinger
	maintainer Maintainer
	activity   ActivityLogger
	metrics    Recorder
	logger     *slog.Logger
	config     PipelineConfig

	mu      sync.Mutex
	running bool
}

// PipelineConfig holds configuration for the ingestion pipeline.
type PipelineConfig struct {
	// SourcePacing is the pause between consecutive adapters in a cycle.
	SourcePacing time.Duration
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SourcePacing: 5 * time.Second,
	}
}

// NewPipeline creates a pipeline over adapters, run in the given order.
// activity and metrics may be nil.
func NewPipeline(
	adapters []Adapter,
	store Pinger,
	maintainer Maintainer,
	activity ActivityLogger,
	metrics Recorder,
	logger *slog.Logger,
	config PipelineConfig,
) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		adapters:   adapters,
		store:      store,
		maintainer: maintainer,
		activity:   activity,
		metrics:    metrics,
		logger:     logger,
		config:     config,
	}
}

func (p *Pipeline) tryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// IsRunning reports whether a run currently holds the pipeline.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Status returns the run flag and the configured sources.
func (p *Pipeline) Status() models.PipelineStatus {
	sources := make([]models.ConfiguredSource, 0, len(p.adapters))
	for _, a := range p.adapters {
		sources = append(sources, models.ConfiguredSource{Name: a.Name(), BaseURL: a.BaseURL()})
	}
	return models.PipelineStatus{
		IsRunning:         p.IsRunning(),
		ConfiguredSources: sources,
	}
}

// RunFullCycle runs every adapter in order, pausing between them, then the
// maintenance sweep. A request while another run is active returns an
// unsuccessful report without doing anything.
func (p *Pipeline) RunFullCycle(ctx context.Context) models.RunReport {
	run, err := p.StartFullCycle()
	if err != nil {
		return models.RunReport{
			StartedAt: time.Now().UTC(),
			Message:   err.Error(),
			Sources:   []models.SourceRunResult{},
		}
	}
	return run(ctx)
}

// StartFullCycle takes the run guard before returning. The returned function
// runs the cycle and releases the guard; callers must invoke it exactly once,
// typically on another goroutine. ErrAlreadyRunning is returned when another
// run holds the guard.
func (p *Pipeline) StartFullCycle() (func(context.Context) models.RunReport, error) {
	if !p.tryAcquire() {
		p.logger.Warn("ingestion cycle requested while another run is active")
		p.recordCycle("skipped", 0)
		return nil, ErrAlreadyRunning
	}
	return func(ctx context.Context) models.RunReport {
		defer p.release()
		return p.fullCycle(ctx)
	}, nil
}

func (p *Pipeline) fullCycle(ctx context.Context) models.RunReport {
	start := time.Now()
	report := models.RunReport{
		StartedAt: start.UTC(),
		Sources:   []models.SourceRunResult{},
	}

	p.logger.Info("starting ingestion cycle", "sources", len(p.adapters))

	if err := p.store.Ping(ctx); err != nil {
		p.logger.Error("catalog store unavailable, aborting cycle", "error", err)
		report.Message = fmt.Sprintf("store unavailable: %v", err)
		report.Duration = time.Since(start)
		p.recordCycle("failed", report.Duration)
		p.logActivity(ctx, models.ActivityTypeCycle, "", "Ingestion cycle aborted: store unavailable", nil, report.Duration, map[string]interface{}{
			"error": err.Error(),
		})
		return report
	}

	interrupted := false
	for i, a := range p.adapters {
		if i > 0 {
			if err := sleepContext(ctx, p.config.SourcePacing); err != nil {
				interrupted = true
				break
			}
		}

		res := a.Scrape(ctx)
		report.Sources = append(report.Sources, models.SourceRunResult{
			Name:       a.Name(),
			Success:    res.Success,
			EventCount: res.EventCount,
			Error:      res.Error,
		})
		report.TotalEventsProcessed += res.EventCount

		if ctx.Err() != nil {
			interrupted = true
			break
		}
	}

	if interrupted {
		report.Message = "ingestion cycle interrupted"
		report.Duration = time.Since(start)
		p.logger.Warn("ingestion cycle interrupted", "completed_sources", len(report.Sources))
		p.recordCycle("interrupted", report.Duration)
		return report
	}

	if res, err := p.maintainer.RunMaintenance(ctx); err != nil {
		p.logger.Error("maintenance after cycle failed", "error", err)
	} else {
		p.logger.Info("maintenance after cycle completed",
			"deleted", res.Deleted,
			"marked_past", res.MarkedPast,
			"promoted_stale", res.PromotedStale)
	}

	report.Success = true
	report.Message = "Scraping completed"
	report.Duration = time.Since(start)

	failed := 0
	for _, s := range report.Sources {
		if !s.Success {
			failed++
		}
	}
	p.logger.Info("ingestion cycle completed",
		"total_events", report.TotalEventsProcessed,
		"failed_sources", failed,
		"duration", report.Duration)
	p.recordCycle("success", report.Duration)

	events := report.TotalEventsProcessed
	p.logActivity(ctx, models.ActivityTypeCycle, "", fmt.Sprintf("Ingestion cycle processed %d events from %d sources", events, len(report.Sources)), &events, report.Duration, map[string]interface{}{
		"sources":        report.Sources,
		"failed_sources": failed,
	})
	return report
}

// RunSingleSource runs one adapter, matched by name case-insensitively. It
// honours the run guard but skips pacing and the maintenance sweep.
func (p *Pipeline) RunSingleSource(ctx context.Context, name string) models.ScrapeResult {
	run, err := p.StartSingleSource(name)
	if err != nil {
		return models.ScrapeResult{Success: false, Error: err.Error()}
	}
	return run(ctx)
}

// StartSingleSource resolves name and takes the run guard before returning.
// Like StartFullCycle, the returned function must be invoked exactly once.
func (p *Pipeline) StartSingleSource(name string) (func(context.Context) models.ScrapeResult, error) {
	adapter := p.lookup(name)
	if adapter == nil {
		return nil, fmt.Errorf("source %s %w", name, ErrSourceNotFound)
	}

	if !p.tryAcquire() {
		p.logger.Warn("source run requested while another run is active", "source", adapter.Name())
		return nil, ErrAlreadyRunning
	}
	return func(ctx context.Context) models.ScrapeResult {
		defer p.release()
		return p.singleSource(ctx, adapter)
	}, nil
}

func (p *Pipeline) singleSource(ctx context.Context, adapter Adapter) models.ScrapeResult {
	if err := p.store.Ping(ctx); err != nil {
		p.logger.Error("catalog store unavailable", "source", adapter.Name(), "error", err)
		return models.ScrapeResult{Success: false, Error: fmt.Sprintf("store unavailable: %v", err)}
	}

	start := time.Now()
	res := adapter.Scrape(ctx)
	duration := time.Since(start)

	msg := fmt.Sprintf("Source run processed %d events", res.EventCount)
	if !res.Success {
		msg = fmt.Sprintf("Source run failed: %s", res.Error)
	}
	events := res.EventCount
	p.logActivity(ctx, models.ActivityTypeSingleRun, adapter.Name(), msg, &events, duration, nil)
	return res
}

// RunMaintenanceSweep runs cleanup and the status sweep outside a cycle.
func (p *Pipeline) RunMaintenanceSweep(ctx context.Context) (models.MaintenanceResult, error) {
	start := time.Now()
	res, err := p.maintainer.RunMaintenance(ctx)
	if err != nil {
		p.logger.Error("maintenance sweep failed", "error", err)
		return res, err
	}

	p.logger.Info("maintenance sweep completed",
		"deleted", res.Deleted,
		"marked_past", res.MarkedPast,
		"promoted_stale", res.PromotedStale,
		"activity_pruned", res.ActivityPruned)
	p.logActivity(ctx, models.ActivityTypeMaintenance, "", "Maintenance sweep completed", nil, time.Since(start), map[string]interface{}{
		"deleted":         res.Deleted,
		"marked_past":     res.MarkedPast,
		"promoted_stale":  res.PromotedStale,
		"activity_pruned": res.ActivityPruned,
	})
	return res, nil
}

func (p *Pipeline) lookup(name string) Adapter {
	name = strings.TrimSpace(name)
	for _, a := range p.adapters {
		if strings.EqualFold(a.Name(), name) {
			return a
		}
	}
	return nil
}

func (p *Pipeline) recordCycle(result string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.CycleFinished(result, d)
	}
}

func (p *Pipeline) logActivity(ctx context.Context, kind models.ActivityType, source, message string, events *int, d time.Duration, details map[string]interface{}) {
	if p.activity == nil {
		return
	}
	ms := int(d.Milliseconds())
	err := p.activity.Log(context.WithoutCancel(ctx), models.ActivityLog{
		ActivityType: kind,
		Source:       source,
		Message:      message,
		Details:      details,
		EventCount:   events,
		DurationMs:   &ms,
	})
	if err != nil {
		p.logger.Error("failed to write activity log", "error", err)
	}
}
