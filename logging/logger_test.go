package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func TestLoggerFieldsAndTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig(Config{Service: "segtree", Module: "test", Level: "info", Output: &buf})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "range sum", "start", 1, "end", 3)
	span.End()

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec["service"] != "segtree" || rec["module"] != "test" {
		t.Errorf("missing service/module: %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("time key should be renamed to timestamp: %v", rec)
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("trace_id = %v, want %s", rec["trace_id"], span.SpanContext().TraceID())
	}
	if rec["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("span_id = %v", rec["span_id"])
	}
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig(Config{Service: "segtree", Level: "warn", Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	if n := len(decodeLines(t, &buf)); n != 1 {
		t.Fatalf("expected 1 record at warn level, got %d", n)
	}

	buf.Reset()
	logger.SetLevel("debug")
	logger.Debug("now shown")
	if n := len(decodeLines(t, &buf)); n != 1 {
		t.Fatalf("expected debug record after SetLevel, got %d", n)
	}
}

func TestLoggersHaveIndependentLevels(t *testing.T) {
	var bufA, bufB bytes.Buffer
	a := NewFromConfig(Config{Service: "segtree", Module: "a", Level: "debug", Output: &bufA})
	b := NewFromConfig(Config{Service: "segtree", Module: "b", Level: "error", Output: &bufB})

	a.InfoContext(context.Background(), "info-from-a")
	b.InfoContext(context.Background(), "info-from-b")
	SetLevel("error")
	defer SetLevel("info")
	a.DebugContext(context.Background(), "debug-from-a")

	if !strings.Contains(bufA.String(), "info-from-a") {
		t.Errorf("logger a (debug) lost its level after logger b was created: %q", bufA.String())
	}
	if !strings.Contains(bufA.String(), "debug-from-a") {
		t.Errorf("package SetLevel leaked into a non-default logger: %q", bufA.String())
	}
	if bufB.Len() != 0 {
		t.Errorf("logger b (error) wrote an info record: %q", bufB.String())
	}
}

func TestDefaultLoggerLevelAndDuration(t *testing.T) {
	var buf bytes.Buffer
	InitFromConfig(Config{Service: "segtree", Module: "default", Level: "info", Output: &buf})
	defer SetLevel("info")

	Debug(context.Background(), "hidden")
	SetLevel("debug")
	Debug(context.Background(), "shown")

	args := make([]any, 2, 4)
	args[0], args[1] = "tree", "demo"
	done := LogDuration(context.Background(), "demo", args...)
	done()
	if spare := args[:4]; spare[2] != nil || spare[3] != nil {
		t.Errorf("LogDuration wrote into the caller's backing array: %v", spare)
	}

	records := decodeLines(t, &buf)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(records), buf.String())
	}
	if records[0]["msg"] != "shown" {
		t.Errorf("first record = %v, want the debug record after SetLevel", records[0]["msg"])
	}
	if records[1]["msg"] != "demo finished" || records[1]["tree"] != "demo" {
		t.Errorf("unexpected duration record %v", records[1])
	}
	if _, ok := records[1]["duration"]; !ok {
		t.Errorf("duration field missing: %v", records[1])
	}
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "segtree.log")
	logger := NewFromConfig(Config{Service: "segtree", Level: "info", File: path, MaxSize: 1, Output: &buf})

	logger.With("tree", "demo").Info("written twice")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"tree":"demo"`) {
		t.Errorf("file output missing attrs: %s", data)
	}
	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("console output missing record: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"}
	for in, want := range cases {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
