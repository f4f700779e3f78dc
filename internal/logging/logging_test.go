package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"time-tracker/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", slog.Int64("line_id", 3))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "line_id=3") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestFileReceivesJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "tracker.log")
	log, closer, err := logging.New(logging.Options{Level: "info", File: path, Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.With(slog.String("component", "test")).Info("tracking started", slog.Int64("line_id", 9))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(buf.String(), "tracking started") {
		t.Errorf("console missing record: %q", buf.String())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &rec); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, raw)
	}
	if rec["msg"] != "tracking started" || rec["component"] != "test" || rec["line_id"] != float64(9) {
		t.Errorf("record = %v", rec)
	}
}
