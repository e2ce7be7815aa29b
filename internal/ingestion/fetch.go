package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/STRATINT/citypulse/internal/models"
)

// Browser-like request headers sent on every fetch.
const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguage   = "en-US,en;q=0.9"

	defaultFetchTimeout = 30 * time.Second
	maxRedirects        = 5
)

// ErrBlocked is matched by fetch errors caused by the source refusing access
// (HTTP 403 or 429).
var ErrBlocked = errors.New("blocked by source")

// Fetcher retrieves the raw bytes of a page or feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchKind classifies a fetch failure.
type FetchKind string

const (
	FetchBlocked FetchKind = "blocked"
	FetchStatus  FetchKind = "status"
	FetchNetwork FetchKind = "network"
	FetchBrowser FetchKind = "browser"
)

// FetchError describes a failed fetch. A failed fetch is transient: the page
// contributes no records for this run.
type FetchError struct {
	URL        string
	Kind       FetchKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes blocked failures match ErrBlocked.
func (e *FetchError) Is(target error) bool {
	return target == ErrBlocked && e.Kind == FetchBlocked
}

// retryable reports whether another attempt could succeed.
func (e *FetchError) retryable() bool {
	return e.Kind == FetchNetwork || (e.Kind == FetchStatus && e.StatusCode >= 500)
}

// errorTypeFor maps a fetch failure onto the ingestion error ledger taxonomy.
func errorTypeFor(err error) models.IngestionErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case FetchBlocked:
			return models.ErrorTypeFetchBlocked
		case FetchBrowser:
			return models.ErrorTypeBrowserFailed
		}
	}
	return models.ErrorTypeFetchFailed
}

func classifyStatus(url string, status int, err error) *FetchError {
	kind := FetchStatus
	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		kind = FetchBlocked
	}
	if status == 0 {
		kind = FetchNetwork
	}
	return &FetchError{URL: url, Kind: kind, StatusCode: status, Err: err}
}

// HTTPFetcher fetches static pages and feeds with a colly collector.
type HTTPFetcher struct {
	Timeout   time.Duration
	Retry     RetryPolicy
	Transport http.RoundTripper
	logger    *slog.Logger
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPFetcher{
		Timeout: timeout,
		Retry:   FetchRetryPolicy(),
		logger:  logger,
	}
}

// Fetch retrieves url. Network failures and 5xx responses are retried per
// the Retry policy.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, f.Retry, func() error {
		b, err := f.fetchOnce(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && fe.retryable() {
				return NewRetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			if fe.StatusCode == http.StatusForbidden {
				f.logger.Warn("access denied", "url", url)
			}
			return nil, fe
		}
		return nil, &FetchError{URL: url, Kind: FetchNetwork, Err: err}
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	base := f.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.Timeout)
	c.WithTransport(&contextTransport{ctx: ctx, base: base})
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguage)
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	var (
		body      []byte
		status    int
		statusErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		statusErr = err
	})

	if err := c.Visit(url); err != nil {
		if ctx.Err() != nil {
			return nil, &FetchError{URL: url, Kind: FetchNetwork, Err: ctx.Err()}
		}
		if statusErr != nil {
			err = statusErr
		}
		return nil, classifyStatus(url, status, err)
	}
	if status >= http.StatusBadRequest {
		return nil, classifyStatus(url, status, errors.New(http.StatusText(status)))
	}
	return body, nil
}

// contextTransport binds every request colly issues to the caller's context
// so cancellation aborts an in-flight fetch.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
