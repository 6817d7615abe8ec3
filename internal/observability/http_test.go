package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shipchat/shipchat/internal/config"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestTraceMiddlewareScopesSessionRoutes(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/v1/sessions/abc-123/messages", "abc-123"},
		{"/v1/sessions/abc-123", "abc-123"},
		{"/v1/sessions", ""},
		{"/v1/health", ""},
	}
	for _, tc := range cases {
		var got string
		h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = SessionIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		if got != tc.want {
			t.Fatalf("session id for %q = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestRouteLabelCollapsesSessionID(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/v1/sessions/abc-123/messages", "/v1/sessions/{session}/messages"},
		{"/v1/sessions/abc-123", "/v1/sessions/{session}"},
		{"/v1/sessions", "/v1/sessions"},
		{"/v1/health", "/v1/health"},
	}
	for _, tc := range cases {
		if got := routeLabel(tc.path); got != tc.want {
			t.Fatalf("routeLabel(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoggingMiddlewareEmitsRouteAndSession(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Service:       config.ServiceConfig{Name: "test"},
		Observability: config.ObservabilityConfig{LogJSON: true, LogLevel: slog.LevelDebug},
	}, &buf)

	h := TraceMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/sessions/abc-123/messages", nil))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log decode failed: %v (line=%s)", err, buf.String())
	}
	if record["route"] != "/v1/sessions/{session}/messages" {
		t.Fatalf("route = %v", record["route"])
	}
	if record["session_id"] != "abc-123" {
		t.Fatalf("session_id = %v", record["session_id"])
	}
	if record["trace_id"] == "" || record["trace_id"] == nil {
		t.Fatalf("trace_id = %v", record["trace_id"])
	}
	if record["status"] != float64(http.StatusAccepted) {
		t.Fatalf("status = %v", record["status"])
	}
}
