package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEventLogWritesOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "output.log")
	events, closer, err := NewEventLog(EventLogConfig{Path: path})
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}

	events.Info("SKIP_TASK", "task", "Task 1")
	events.Info("QUIT")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), content)
	}
	if !strings.Contains(lines[0], "msg=SKIP_TASK") || !strings.Contains(lines[0], `task="Task 1"`) {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
}

func TestEventLogAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	for i := 0; i < 2; i++ {
		events, closer, err := NewEventLog(EventLogConfig{Path: path})
		if err != nil {
			t.Fatalf("open event log: %v", err)
		}
		events.Info("QUIT")
		_ = closer.Close()
	}
	content, _ := os.ReadFile(path)
	if strings.Count(string(content), "msg=QUIT") != 2 {
		t.Fatalf("expected appended records, got %q", content)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	w, err := newRotatingWriter(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	w.maxSize = 16
	defer w.Close()

	for i := 0; i < 3; i++ {
		if _, err := w.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
}

func TestNewEventLogRequiresPath(t *testing.T) {
	if _, _, err := NewEventLog(EventLogConfig{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
