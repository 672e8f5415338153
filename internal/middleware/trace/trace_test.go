package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"billtrack/internal/log"
)

func TestHandler_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: log.FormatText})
	m := NewMiddleware(logger, nil, WithIDs(func() string { return "req_fixed" }))

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/bills", nil))

	if seen != "req_fixed" || rr.Header().Get(HeaderRequestID) != "req_fixed" {
		t.Fatalf("request id = %q, header = %q", seen, rr.Header().Get(HeaderRequestID))
	}
	if !strings.Contains(buf.String(), `msg="inside handler"`) || !strings.Contains(buf.String(), "request_id=req_fixed") {
		t.Errorf("handler log misses the request id: %s", buf.String())
	}
}

func TestHandler_KeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(HeaderRequestID); got != "upstream-1" {
		t.Errorf("request id = %q, want upstream-1", got)
	}

	req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "req_") {
		t.Errorf("oversized id should be replaced, got %q", got)
	}
}

func TestHandler_ObservesRoute(t *testing.T) {
	type observation struct {
		route  string
		status int
	}
	var got []observation
	m := NewMiddleware(nil, nil, WithObserver(func(route string, status int, _ time.Duration) {
		got = append(got, observation{route, status})
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	})
	h := m.Handler(mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bills/42", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []observation{
		{"GET /api/bills/{id}", http.StatusNotFound},
		{"unmatched", http.StatusNotFound},
	}
	if len(got) != len(want) {
		t.Fatalf("observations = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
