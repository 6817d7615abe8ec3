package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/shipchat/shipchat/internal/config"
)

func testLoggerConfig() config.Config {
	return config.Config{
		Service:       config.ServiceConfig{Name: "test"},
		Observability: config.ObservabilityConfig{LogJSON: true, LogLevel: slog.LevelDebug},
	}
}

func TestContextIdentifierHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
	ctx = ContextWithSessionID(ctx, "session-9")
	if got := SessionIDFromContext(ctx); got != "session-9" {
		t.Fatalf("SessionIDFromContext() = %q", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Fatalf("SessionIDFromContext(empty) = %q", got)
	}
}

func TestLoggerStampsContextIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testLoggerConfig(), &buf)

	ctx := ContextWithSessionID(ContextWithTraceID(context.Background(), "t-1"), "s-1")
	logger.InfoContext(ctx, "turn completed", slog.Int("reflections", 2))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log decode failed: %v (line=%s)", err, buf.String())
	}
	if record["trace_id"] != "t-1" || record["session_id"] != "s-1" {
		t.Fatalf("identifiers = trace %v session %v", record["trace_id"], record["session_id"])
	}
	if record["service"] != "test" {
		t.Fatalf("service = %v", record["service"])
	}
	if record["reflections"] != float64(2) {
		t.Fatalf("reflections = %v", record["reflections"])
	}
}

func TestLoggerOmitsIdentifiersWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testLoggerConfig(), &buf)

	logger.Info("startup")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log decode failed: %v", err)
	}
	if _, ok := record["trace_id"]; ok {
		t.Fatalf("unexpected trace_id: %v", record["trace_id"])
	}
	if _, ok := record["session_id"]; ok {
		t.Fatalf("unexpected session_id: %v", record["session_id"])
	}
}

func TestLoggerSurvivesWithAttrsWrapping(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(testLoggerConfig(), &buf).With(slog.String("component", "chat"))

	ctx := ContextWithSessionID(context.Background(), "s-2")
	logger.InfoContext(ctx, "session authenticated")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log decode failed: %v", err)
	}
	if record["session_id"] != "s-2" {
		t.Fatalf("session_id = %v", record["session_id"])
	}
	if record["component"] != "chat" {
		t.Fatalf("component = %v", record["component"])
	}
}
