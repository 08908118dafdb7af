package tools

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func systemRegistry(t *testing.T, deps Deps) *Registry {
	t.Helper()
	registry, err := NewRegistry(systemTools(deps)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return registry
}

func TestCurrentDatetime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	registry := systemRegistry(t, Deps{Now: func() time.Time { return fixed }})
	out := registry.Dispatch(context.Background(), "current_datetime", "")
	if out.Failed || out.Output != "2024-03-01T09:30:00.000000" {
		t.Fatalf("unexpected datetime %+v", out)
	}
}

func TestTimerSleep(t *testing.T) {
	registry := systemRegistry(t, Deps{})
	if out := registry.Dispatch(context.Background(), "timer_sleep", "0"); out.Failed || out.Output != "Slept for 0 seconds." {
		t.Fatalf("unexpected outcome %+v", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if out := registry.Dispatch(ctx, "timer_sleep", "60"); !out.Failed {
		t.Fatalf("expected cancellation to fail the sleep")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancelled sleep should return promptly")
	}
	if out := registry.Dispatch(context.Background(), "timer_sleep", "soon"); !out.Failed {
		t.Fatalf("expected failure for invalid duration")
	}
}

func TestTimerSleepRejectsNonFinite(t *testing.T) {
	registry := systemRegistry(t, Deps{})
	for _, arg := range []string{"NaN", "Inf", "-Inf", "+Inf", "-1"} {
		if out := registry.Dispatch(context.Background(), "timer_sleep", arg); !out.Failed {
			t.Fatalf("%s: expected failure, got %+v", arg, out)
		}
	}
}

func TestTimerSleepClampsHugeDurations(t *testing.T) {
	registry := systemRegistry(t, Deps{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := registry.Dispatch(ctx, "timer_sleep", "1e300")
	if !out.Failed || !strings.Contains(out.Output, "deadline") {
		t.Fatalf("huge duration must wait for the capped timer, got %+v", out)
	}
}

func TestShellCommand(t *testing.T) {
	disabled := systemRegistry(t, Deps{})
	if out := disabled.Dispatch(context.Background(), "shell_command", "echo hi"); !out.Failed || out.Output != ErrShellDisabled.Error() {
		t.Fatalf("expected disabled shell, got %+v", out)
	}

	enabled := systemRegistry(t, Deps{AllowShell: true})
	if out := enabled.Dispatch(context.Background(), "shell_command", "echo hi"); out.Failed || out.Output != "hi\n" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out := enabled.Dispatch(context.Background(), "shell_command", "exit 3"); !out.Failed {
		t.Fatalf("expected non-zero exit to fail")
	}
	out := enabled.Dispatch(context.Background(), "shell_command", "head -c 1500 /dev/zero | tr '\\0' x")
	if out.Failed || !strings.HasSuffix(out.Output, truncateSuffix) || len(out.Output) != maxToolOutput+len(truncateSuffix) {
		t.Fatalf("expected truncated output, got %d bytes", len(out.Output))
	}
}

func TestWriteAndReadFile(t *testing.T) {
	registry := systemRegistry(t, Deps{})
	path := filepath.Join(t.TempDir(), "notes", "todo.txt")

	out := registry.Dispatch(context.Background(), "write_file", path+"::first line::with separator")
	if out.Failed || out.Output != "Wrote to "+path {
		t.Fatalf("unexpected outcome %+v", out)
	}
	out = registry.Dispatch(context.Background(), "file_read", path)
	if out.Failed || out.Output != "first line::with separator" {
		t.Fatalf("unexpected contents %+v", out)
	}
	if out := registry.Dispatch(context.Background(), "file_read", filepath.Join(t.TempDir(), "missing")); !out.Failed {
		t.Fatalf("expected failure for missing file")
	}
	if out := registry.Dispatch(context.Background(), "write_file", "no separator"); !out.Failed {
		t.Fatalf("expected failure without separator")
	}
}

func TestDatabaseQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range []string{
		"CREATE TABLE tasks (id INTEGER, name TEXT)",
		"INSERT INTO tasks VALUES (1, 'plan'), (2, 'write')",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	_ = db.Close()

	registry := systemRegistry(t, Deps{})
	out := registry.Dispatch(context.Background(), "database_query", path+"::SELECT id, name FROM tasks ORDER BY id")
	if out.Failed || out.Output != `[[1,"plan"],[2,"write"]]` {
		t.Fatalf("unexpected rows %+v", out)
	}
	if out := registry.Dispatch(context.Background(), "database_query", path+"::SELECT nope FROM missing"); !out.Failed {
		t.Fatalf("expected failure for invalid query")
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("short") != "short" {
		t.Fatalf("short text must be unchanged")
	}
	long := strings.Repeat("é", maxToolOutput+1)
	got := Truncate(long)
	if !strings.HasSuffix(got, truncateSuffix) || len([]rune(strings.TrimSuffix(got, truncateSuffix))) != maxToolOutput {
		t.Fatalf("unexpected truncation")
	}
}
