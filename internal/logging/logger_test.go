package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "chatty", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
		{"error filters info", "error", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "grammar snapshot")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger("info", &buf)
	logger.Info("starting simulation", "num_echildren", 100)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "starting simulation" {
		t.Errorf("msg = %v, want 'starting simulation'", entry["msg"])
	}
	if entry["num_echildren"] != float64(100) {
		t.Errorf("num_echildren = %v, want 100", entry["num_echildren"])
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic.
	Discard().Info("dropped", "k", "v")
}

func TestNewTrialLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTrialLogger(dir, "info")

	if tl != nil {
		t.Error("expected nil TrialLogger at info level")
	}

	// Nil logger should still be safe to use
	tl.Log(map[string]any{"language": 611})

	if _, err := os.Stat(filepath.Join(dir, TrialLogFile)); err == nil {
		t.Errorf("%s should not exist at info level", TrialLogFile)
	}
}

func TestNewTrialLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTrialLogger(dir, "debug")
	defer tl.Close()

	tl.Log(map[string]any{"language": 611, "noise": 0.05})

	data, err := os.ReadFile(filepath.Join(dir, TrialLogFile))
	if err != nil {
		t.Fatalf("failed to read %s: %v", TrialLogFile, err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["language"] != float64(611) {
		t.Errorf("language = %v, want 611", entry["language"])
	}
	if entry["noise"] != 0.05 {
		t.Errorf("noise = %v, want 0.05", entry["noise"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in trial log entry")
	}
}

func TestNewTrialLogger_TraceLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTrialLogger(dir, "trace")
	if tl == nil {
		t.Fatal("expected TrialLogger at trace level")
	}
	tl.Close()
}

func TestTrialLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	tl := NewTrialLogger(dir, "debug")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tl.Log(map[string]any{"trial": i})
		}(i)
	}
	wg.Wait()
	tl.Close()

	data, err := os.ReadFile(filepath.Join(dir, TrialLogFile))
	if err != nil {
		t.Fatalf("failed to read %s: %v", TrialLogFile, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON (interleaved write?): %q", i, line)
		}
	}
}

func TestTrialLogger_NilSafety(t *testing.T) {
	var tl *TrialLogger
	tl.Log(map[string]any{"event": "should_not_panic"})
	tl.Close()
}

func TestTrialLogger_DoesNotMutateCallerMap(t *testing.T) {
	tl := NewTrialLogger(t.TempDir(), "debug")
	defer tl.Close()

	event := map[string]any{"language": 584}
	tl.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestTrialLogger_LogAfterClose(t *testing.T) {
	tl := NewTrialLogger(t.TempDir(), "debug")
	tl.Log(map[string]any{"event": "before_close"})
	tl.Close()

	// Should be a no-op, not panic or error
	tl.Log(map[string]any{"event": "after_close"})
}

func TestNewTrialLogger_CreatesDir(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "simulation_output", "run")

	tl := NewTrialLogger(nestedDir, "debug")
	if tl == nil {
		t.Fatal("expected non-nil TrialLogger when dir needs creation")
	}
	defer tl.Close()

	if _, err := os.Stat(filepath.Join(nestedDir, TrialLogFile)); err != nil {
		t.Fatalf("%s should exist after dir creation: %v", TrialLogFile, err)
	}
}
