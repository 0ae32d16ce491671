package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"printlapse/internal/logging"
	"printlapse/internal/services"
)

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:  "console",
		Level:   "info",
		Outputs: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(string(content), "INFO message without caller") {
		t.Fatalf("unexpected console line %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndJob(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "7")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "monitor")).Info("capture started", logging.Int("start_frame", 4))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "monitor [job 7]: capture started") {
		t.Fatalf("expected component and job subject, got %q", line)
	}
	if !strings.Contains(line, "start_frame=4") {
		t.Fatalf("expected attribute, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be lifted into the subject, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hello", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["msg"] != "hello" || entry["level"] != "debug" || entry["k"] != "v" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}
	if _, ok := entry["source"]; !ok {
		t.Fatalf("expected source at debug level, got %#v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Outputs: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "status fetch failed", "status_fetch_failed",
		logging.String(logging.FieldImpact, "poll skipped"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "status_fetch_failed" {
		t.Fatalf("expected event type, got %#v", entry)
	}
	if entry[logging.FieldErrorHint] == "" || entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %#v", entry)
	}
	if entry[logging.FieldImpact] != "poll skipped" {
		t.Fatalf("explicit impact should win, got %#v", entry)
	}
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "printlapse-old.log")
	freshLog := filepath.Join(dir, "printlapse-new.log")
	current := filepath.Join(dir, "printlapse-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, freshLog, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{oldLog, current, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	pointer := filepath.Join(dir, "printlapse.log")
	if err := os.Symlink(current, pointer); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	removed := logging.PruneLogs(logging.NewNop(), dir, "printlapse-*.log", 7*24*time.Hour, pointer)
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{freshLog, current, other, pointer} {
		if _, err := os.Lstat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}

func TestPruneLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "printlapse-old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().AddDate(0, 0, -90)
	_ = os.Chtimes(path, past, past)

	if removed := logging.PruneLogs(nil, dir, "*.log", 0); removed != 0 {
		t.Fatalf("expected nothing removed, got %d", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("zero max age should keep files: %v", err)
	}
}
