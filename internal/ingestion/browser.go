package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultSelectorWait = 5 * time.Second
	defaultRenderSettle = 2 * time.Second
)

// BrowserFetcher renders pages in headless Chrome for sources that build
// their listings with client-side JavaScript. Each fetch launches and tears
// down its own browser.
type BrowserFetcher struct {
	ExecPath string
	Timeout  time.Duration

	// WaitFor is a CSS selector the page is given SelectorWait to show before
	// the HTML is captured. A missing selector is logged, not fatal.
	WaitFor      string
	SelectorWait time.Duration

	// Settle approximates waiting for the network to go idle after load.
	Settle time.Duration

	logger *slog.Logger
}

// NewBrowserFetcher creates a fetcher that waits for waitFor after load.
func NewBrowserFetcher(execPath, waitFor string, timeout time.Duration, logger *slog.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BrowserFetcher{
		ExecPath:     execPath,
		Timeout:      timeout,
		WaitFor:      waitFor,
		SelectorWait: defaultSelectorWait,
		Settle:       defaultRenderSettle,
		logger:       logger,
	}
}

// Fetch navigates to url and returns the rendered document HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1280, 900),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// Start the browser on the long-lived context so the timeouts below only
	// bound individual actions.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, &FetchError{URL: url, Kind: FetchBrowser, Err: err}
	}

	runCtx, cancelRun := context.WithTimeout(browserCtx, f.Timeout)
	defer cancelRun()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(f.Settle),
	); err != nil {
		return nil, &FetchError{URL: url, Kind: FetchBrowser, Err: err}
	}

	if f.WaitFor != "" {
		waitCtx, cancelWait := context.WithTimeout(runCtx, f.SelectorWait)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(f.WaitFor, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			f.logger.Debug("selector did not appear, capturing page anyway", "url", url, "selector", f.WaitFor)
		}
	}

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, &FetchError{URL: url, Kind: FetchBrowser, Err: err}
	}
	return []byte(html), nil
}
