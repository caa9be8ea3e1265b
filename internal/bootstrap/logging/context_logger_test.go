package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithAttrs(ctx, slog.String("component", "scan.queue"), slog.String("job_id", "j-1"))
	ctx = WithComponent(ctx, "scan.worker")

	Info(ctx, "attempt finished", slog.Int("attempt", 2))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "scan.worker" {
		t.Fatalf("component = %v", entry["component"])
	}
	if entry["job_id"] != "j-1" {
		t.Fatalf("job_id = %v", entry["job_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Fatalf("attempt = %v", entry["attempt"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "text"))

	Debug(ctx, "hidden")
	Info(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("unexpected output below warn: %q", buf.String())
	}

	Warn(ctx, "fail-open fallback applied")
	if !bytes.Contains(buf.Bytes(), []byte("fail-open fallback applied")) {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
