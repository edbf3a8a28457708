package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInfoCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithCallerAddress(ctx, "0x00000000000000000000000000000000000000aa")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("request_id missing from entry: %v", entry)
	}
	if entry["caller_address"] != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("caller_address missing from entry: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("service field missing: %v", entry)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "boom", context.Canceled)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if entry["stack"] == nil || entry["stack"] == "" {
		t.Fatal("expected stack trace on error entries")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("debug should parse")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatal("empty should fall back to info")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatal("unknown should fall back to info")
	}
}
