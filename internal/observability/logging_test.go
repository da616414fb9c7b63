package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*Logger, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp log file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	logger := New(LogConfig{Level: slog.LevelDebug, Output: f, RedactPatterns: DefaultRedactPatterns})
	return logger, f
}

func readLines(t *testing.T, f *os.File) []string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func TestLoggerRedactsAPIKeyInMessage(t *testing.T) {
	logger, f := newTestLogger(t)
	logger.Info("request failed with api_key=sk-12345 attached")

	lines := readLines(t, f)
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	msg, _ := entry["msg"].(string)
	if strings.Contains(msg, "sk-12345") {
		t.Errorf("msg = %q, expected api key to be redacted", msg)
	}
	if !strings.Contains(msg, "[redacted]") {
		t.Errorf("msg = %q, expected [redacted] marker", msg)
	}
}

func TestLoggerRedactsBearerToken(t *testing.T) {
	logger, f := newTestLogger(t)
	logger.Warn("auth header: bearer abc123.def456")

	lines := readLines(t, f)
	var entry map[string]any
	json.Unmarshal([]byte(lines[0]), &entry)
	msg, _ := entry["msg"].(string)
	if strings.Contains(msg, "abc123.def456") {
		t.Errorf("msg = %q, expected bearer token to be redacted", msg)
	}
}

func TestLoggerWithAddsFields(t *testing.T) {
	logger, f := newTestLogger(t)
	scoped := logger.With("agent_id", "agent-42")
	scoped.Info("hello")

	lines := readLines(t, f)
	var entry map[string]any
	json.Unmarshal([]byte(lines[0]), &entry)
	if entry["agent_id"] != "agent-42" {
		t.Errorf("entry[agent_id] = %v, want agent-42", entry["agent_id"])
	}
}

func TestLoggerWithContextExtractsKnownKeys(t *testing.T) {
	logger, f := newTestLogger(t)
	ctx := context.WithValue(context.Background(), AgentIDKey, "agent-7")
	ctx = context.WithValue(ctx, RequestIDKey, "req-9")

	logger.WithContext(ctx).Info("processing")

	lines := readLines(t, f)
	var entry map[string]any
	json.Unmarshal([]byte(lines[0]), &entry)
	if entry["agent_id"] != "agent-7" {
		t.Errorf("entry[agent_id] = %v, want agent-7", entry["agent_id"])
	}
	if entry["request_id"] != "req-9" {
		t.Errorf("entry[request_id] = %v, want req-9", entry["request_id"])
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, f := newTestLogger(t)
	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	lines := readLines(t, f)
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp log file: %v", err)
	}
	defer f.Close()
	logger := New(LogConfig{Level: slog.LevelWarn, Output: f})
	logger.Debug("should be dropped")
	logger.Info("should be dropped too")
	logger.Warn("should appear")

	lines := readLines(t, f)
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line at warn level, got %d: %v", len(lines), lines)
	}
}
