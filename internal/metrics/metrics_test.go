package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Operation("add", "local", true)
	m.Operation("add", "local", true)
	m.Operation("delete", "airtable", false)
	m.Parse(true)
	m.Connect("google-sheets", true)
	m.Reminder("before3Days")

	if got := testutil.ToFloat64(m.operations.WithLabelValues("add", "local", "success")); got != 2 {
		t.Fatalf("expected 2 local adds, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("delete", "airtable", "failure")); got != 1 {
		t.Fatalf("expected 1 failed delete, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Operation("add", "local", true)
	m.Parse(false)
	m.Request("/api/bills", 200, time.Millisecond)
}

func TestHandler(t *testing.T) {
	m := New()
	m.Request("GET /api/bills", http.StatusOK, 10*time.Millisecond)
	m.Connect("airtable", false)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`billtrack_backend_connects_total{backend="airtable",outcome="failure"} 1`,
		"billtrack_http_request_duration_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in metrics output", want)
		}
	}
}
