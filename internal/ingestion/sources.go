package ingestion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/STRATINT/citypulse/internal/config"
)

// FetchOptions configures the fetchers built for configured sources.
type FetchOptions struct {
	Timeout    time.Duration
	ChromePath string
	Retries    int // extra attempts for static fetches; 0 means one attempt per run
}

func (o FetchOptions) httpFetcher(logger *slog.Logger) *HTTPFetcher {
	f := NewHTTPFetcher(o.Timeout, logger)
	if o.Retries > 0 {
		f.Retry.MaxRetries = o.Retries
	}
	return f
}

// BuildAdapters constructs one adapter per configured source, preserving
// order.
func BuildAdapters(sources []config.SourceConfig, deps AdapterDeps, opts FetchOptions) ([]Adapter, error) {
	logger := deps.Logger
	adapters := make([]Adapter, 0, len(sources))
	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}

		switch src.Type {
		case config.SourceTypeFeed:
			fetcher := opts.httpFetcher(logger)
			adapters = append(adapters, NewFeedAdapter(src.Name, src.BaseURL, src.FeedURL, fetcher, deps))

		case config.SourceTypeStatic, config.SourceTypeBrowser:
			profile, err := LookupProfile(src.Profile)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}

			var fetcher Fetcher
			if src.Type == config.SourceTypeBrowser {
				fetcher = NewBrowserFetcher(opts.ChromePath, src.WaitFor, opts.Timeout, logger)
			} else {
				fetcher = opts.httpFetcher(logger)
			}

			a, err := NewPageAdapter(src.Name, src.BaseURL, src.Pages, fetcher, profile, src.PageDelay, deps)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)

		default:
			return nil, fmt.Errorf("%s: unknown source type %q", src.Name, src.Type)
		}
	}
	return adapters, nil
}
