package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api-test", Output: &buf})

	logg.Info(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "api-test" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("expected message, got %v", entry["message"])
	}
}

func TestWithFieldsFlowsThroughContext(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api-test", Output: &buf})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"event_id":    "evt_123",
		"plugin_slug": "acme-tool",
	})
	logg.Info(ctx, "processed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["event_id"] != "evt_123" {
		t.Fatalf("expected event_id field, got %v", entry["event_id"])
	}
	if entry["plugin_slug"] != "acme-tool" {
		t.Fatalf("expected plugin_slug field, got %v", entry["plugin_slug"])
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %v", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info default, got %v", got)
	}
	if got := ParseLevel("bogus"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
}
