package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/STRATINT/citypulse/internal/models"
)

// PageAdapter scrapes a source's HTML listing pages, one after another.
type PageAdapter struct {
	baseAdapter
	pages     []string
	fetcher   Fetcher
	cards     CardSpec
	pageDelay time.Duration
}

// NewPageAdapter creates an adapter for the given listing pages. Relative
// pages are resolved against baseURL.
func NewPageAdapter(name, baseURL string, pages []string, fetcher Fetcher, profile Profile, pageDelay time.Duration, deps AdapterDeps) (*PageAdapter, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", name, baseURL)
	}

	resolved := make([]string, 0, len(pages))
	for _, p := range pages {
		ref, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid page %q: %w", name, p, err)
		}
		resolved = append(resolved, base.ResolveReference(ref).String())
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("%s: no pages configured", name)
	}

	rules := NormalizeRules{
		ParseDate:      profile.ParseDate,
		VenueSeparator: profile.VenueSeparator,
	}
	return &PageAdapter{
		baseAdapter: newBaseAdapter(name, baseURL, rules, deps),
		pages:       resolved,
		fetcher:     fetcher,
		cards:       profile.Cards,
		pageDelay:   pageDelay,
	}, nil
}

// Pages returns the resolved listing page URLs.
func (a *PageAdapter) Pages() []string {
	return append([]string(nil), a.pages...)
}

// Scrape fetches and reconciles every listing page. A page that fails to
// fetch contributes nothing; the run fails only when every page failed.
func (a *PageAdapter) Scrape(ctx context.Context) models.ScrapeResult {
	return a.run(ctx, func(ctx context.Context, run *sourceRun) error {
		var lastErr error
		for i, page := range a.pages {
			if i > 0 {
				if err := sleepContext(ctx, a.pageDelay); err != nil {
					return err
				}
			}
			if err := a.scrapePage(ctx, run, page); err != nil {
				run.failedPages++
				lastErr = err
			}
		}
		if run.failedPages == len(a.pages) {
			return fmt.Errorf("all %d pages failed: %w", len(a.pages), lastErr)
		}
		return nil
	})
}

func (a *PageAdapter) scrapePage(ctx context.Context, run *sourceRun, page string) error {
	a.logger.Info("fetching listing page", "url", page)

	body, err := a.fetcher.Fetch(ctx, page)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			a.logger.Warn("listing page blocked", "url", page, "error", err)
		} else {
			a.logger.Error("failed to fetch listing page", "url", page, "error", err)
		}
		a.recordError(ctx, errorTypeFor(err), page, err.Error(), nil)
		return err
	}

	records, skipped, err := a.cards.Extract(body, page)
	if err != nil {
		a.logger.Error("failed to parse listing page", "url", page, "error", err)
		a.recordError(ctx, models.ErrorTypeFetchFailed, page, err.Error(), nil)
		return err
	}
	if skipped > 0 {
		a.logger.Debug("skipped cards without title or link", "url", page, "skipped", skipped)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.ingest(ctx, run, page, rec)
	}
	a.logger.Info("listing page processed", "url", page, "cards", len(records))
	return nil
}
