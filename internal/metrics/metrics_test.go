package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/STRATINT/citypulse/internal/models"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	collector.InstrumentHandler(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/run", nil))

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `citypulse_http_requests_total{method="POST",path="/admin/run",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `citypulse_http_request_duration_seconds_count{method="POST",path="/admin/run",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsPipelineMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.CycleFinished("success", 42*time.Second)
	collector.CycleFinished("skipped", 0)
	collector.SourceRun("Eventbrite", true)
	collector.SourceRun("Time Out Sydney", false)
	collector.RecordMerged("Eventbrite", models.OutcomeCreated)
	collector.RecordMerged("Eventbrite", models.OutcomeCreated)
	collector.Transitions("past_date", 3)
	collector.Transitions("unobserved", 0)

	body := scrape(t, collector)
	expected := []string{
		`citypulse_pipeline_cycles_total{result="success"} 1`,
		`citypulse_pipeline_cycles_total{result="skipped"} 1`,
		`citypulse_pipeline_cycle_duration_seconds_count 1`,
		`citypulse_pipeline_source_runs_total{result="success",source="Eventbrite"} 1`,
		`citypulse_pipeline_source_runs_total{result="failed",source="Time Out Sydney"} 1`,
		`citypulse_pipeline_records_total{outcome="created",source="Eventbrite"} 2`,
		`citypulse_lifecycle_transitions_total{kind="past_date"} 3`,
	}
	for _, line := range expected {
		if !strings.Contains(body, line) {
			t.Errorf("missing %q in metrics output", line)
		}
	}
	if strings.Contains(body, `kind="unobserved"`) {
		t.Error("expected zero-count transitions not to be recorded")
	}
}
