package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/STRATINT/citypulse/internal/logging"
)

func newTestFetcher() *HTTPFetcher {
	f := NewHTTPFetcher(5*time.Second, logging.Discard())
	f.Retry = RetryPolicy{MaxRetries: 0}
	return f
}

func TestHTTPFetcher_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")

	assert.Equal(t, browserUserAgent, got.Get("User-Agent"))
	assert.Equal(t, acceptHeader, got.Get("Accept"))
	assert.Equal(t, acceptLanguage, got.Get("Accept-Language"))
	assert.Equal(t, "1", got.Get("Upgrade-Insecure-Requests"))
}

func TestHTTPFetcher_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status  int
		kind    FetchKind
		blocked bool
	}{
		{http.StatusForbidden, FetchBlocked, true},
		{http.StatusTooManyRequests, FetchBlocked, true},
		{http.StatusNotFound, FetchStatus, false},
		{http.StatusInternalServerError, FetchStatus, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.blocked, errors.Is(err, ErrBlocked))
		})
	}
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.Retry = RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1}

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_DoesNotRetryBlocked(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.Retry = RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1}

	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_RedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/loop")
	require.Error(t, err)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchNetwork, fe.Kind)
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestErrorTypeFor(t *testing.T) {
	assert.Equal(t, "fetch_blocked", string(errorTypeFor(&FetchError{Kind: FetchBlocked})))
	assert.Equal(t, "browser_failed", string(errorTypeFor(&FetchError{Kind: FetchBrowser})))
	assert.Equal(t, "fetch_failed", string(errorTypeFor(&FetchError{Kind: FetchStatus, StatusCode: 500})))
	assert.Equal(t, "fetch_failed", string(errorTypeFor(errors.New("other"))))
}

type failingTransport struct{ calls atomic.Int32 }

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("connection reset by peer")
}

func TestHTTPFetcher_DefaultPolicySingleAttempt(t *testing.T) {
	transport := &failingTransport{}
	f := NewHTTPFetcher(5*time.Second, logging.Discard())
	f.Transport = transport

	_, err := f.Fetch(context.Background(), "https://www.sydneytoday.com/events")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, FetchNetwork, fe.Kind)
	assert.Equal(t, int32(1), transport.calls.Load(), "network failures are not retried within a cycle")
}
