package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/STRATINT/citypulse/internal/database"
	"github.com/STRATINT/citypulse/internal/models"
)

// Adapter is a source of events. Scrape fetches everything the source lists,
// reconciles it into the catalog and inactivates what the source no longer
// lists. It reports failure in the result rather than panicking or returning
// an error.
type Adapter interface {
	// Name is the unique, human-readable source name.
	Name() string

	// BaseURL is the source's home page.
	BaseURL() string

	// Scrape runs one pass over the source.
	Scrape(ctx context.Context) models.ScrapeResult
}

// InactivityMarker moves catalog entries of a source that were not observed
// in its latest run to inactive.
type InactivityMarker interface {
	MarkUnobserved(ctx context.Context, sourceName string, activeURLs []string) (int64, error)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	CycleFinished(result string, d time.Duration)
	SourceRun(source string, success bool)
	RecordMerged(source string, outcome models.MergeOutcome)
}

// AdapterDeps are the collaborators every adapter writes through.
type AdapterDeps struct {
	Merger     *Merger
	Marker     InactivityMarker
	Normalizer Normalizer
	Errors     database.IngestionErrorRepository // optional
	Metrics    Recorder                          // optional
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (d AdapterDeps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// sourceRun is the state of one Scrape call.
type sourceRun struct {
	active      *ActiveURLSet
	failedPages int
	outcomes    map[models.MergeOutcome]int
}

// baseAdapter carries what page and feed adapters share: identity,
// reconciliation, error recording and the inactivation sweep.
type baseAdapter struct {
	name    string
	baseURL string
	rules   NormalizeRules
	deps    AdapterDeps
	logger  *slog.Logger
}

func newBaseAdapter(name, baseURL string, rules NormalizeRules, deps AdapterDeps) baseAdapter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return baseAdapter{
		name:    name,
		baseURL: baseURL,
		rules:   rules,
		deps:    deps,
		logger:  logger.With("source", name),
	}
}

func (b *baseAdapter) Name() string    { return b.name }
func (b *baseAdapter) BaseURL() string { return b.baseURL }

// run executes collect under panic recovery, then applies the
// source-scoped inactivation sweep.
//
// The sweep is skipped when nothing was observed or a page failed to fetch:
// a partial view of the source must not inactivate what it could not see.
func (b *baseAdapter) run(ctx context.Context, collect func(ctx context.Context, run *sourceRun) error) (result models.ScrapeResult) {
	start := b.deps.now()
	run := &sourceRun{
		active:   NewActiveURLSet(),
		outcomes: make(map[models.MergeOutcome]int),
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("adapter panicked", "panic", r, "stack", string(debug.Stack()))
			b.recordError(ctx, models.ErrorTypeAdapterPanic, b.baseURL, fmt.Sprintf("panic: %v", r), nil)
			result = models.ScrapeResult{Success: false, EventCount: run.active.Len(), Error: fmt.Sprintf("adapter panicked: %v", r)}
		}
		if b.deps.Metrics != nil {
			b.deps.Metrics.SourceRun(b.name, result.Success)
		}
	}()

	if err := collect(ctx, run); err != nil {
		b.logger.Error("source run failed", "error", err, "events", run.active.Len())
		return models.ScrapeResult{Success: false, EventCount: run.active.Len(), Error: err.Error()}
	}

	switch {
	case run.active.Len() == 0:
		b.logger.Warn("no events observed, skipping inactivation")
	case run.failedPages > 0:
		b.logger.Warn("pages failed, skipping inactivation", "failed_pages", run.failedPages)
	case b.deps.Marker != nil:
		n, err := b.deps.Marker.MarkUnobserved(ctx, b.name, run.active.URLs())
		if err != nil {
			b.logger.Error("failed to mark unobserved events inactive", "error", err)
		} else if n > 0 {
			b.logger.Info("marked unobserved events inactive", "count", n)
		}
	}

	b.logger.Info("source run completed",
		"events", run.active.Len(),
		"created", run.outcomes[models.OutcomeCreated],
		"updated", run.outcomes[models.OutcomeUpdated],
		"unchanged", run.outcomes[models.OutcomeUnchanged],
		"duplicate", run.outcomes[models.OutcomeDuplicate],
		"errors", run.outcomes[models.OutcomeError],
		"repeated_listings", run.active.Repeats(),
		"duration", time.Since(start),
	)
	return models.ScrapeResult{Success: true, EventCount: run.active.Len()}
}

// ingest normalizes and reconciles one raw record. Persistence faults are
// logged and the record still counts as observed.
func (b *baseAdapter) ingest(ctx context.Context, run *sourceRun, pageURL string, raw models.RawRecord) {
	identity := models.SourceIdentity{
		Name:     b.name,
		URL:      pageURL,
		EventURL: raw.EventURL,
	}
	ev := b.deps.Normalizer.Normalize(identity, raw, b.rules, b.deps.now())

	outcome, err := b.deps.Merger.Upsert(ctx, ev)
	if err != nil {
		b.logger.Error("failed to store event", "url", raw.EventURL, "error", err)
	}
	run.outcomes[outcome]++
	run.active.Add(raw.EventURL)
	if b.deps.Metrics != nil {
		b.deps.Metrics.RecordMerged(b.name, outcome)
	}
}

// recordError writes a failure to the ingestion error ledger when one is
// configured.
func (b *baseAdapter) recordError(ctx context.Context, errType models.IngestionErrorType, url, msg string, metadata map[string]interface{}) {
	if b.deps.Errors == nil {
		return
	}

	meta := ""
	if metadata != nil {
		if m, err := database.CreateErrorMetadata(metadata); err == nil {
			meta = m
		}
	}

	err := b.deps.Errors.Store(context.WithoutCancel(ctx), models.IngestionError{
		Source:    b.name,
		ErrorType: string(errType),
		URL:       url,
		ErrorMsg:  msg,
		Metadata:  meta,
		CreatedAt: b.deps.now(),
	})
	if err != nil {
		b.logger.Error("failed to record ingestion error", "error", err)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
