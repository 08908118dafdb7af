package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(strings.NewReader(" e \nnew text\n"), &out)

	choice, err := console.Choose(context.Background(), "Task 1")
	if err != nil || choice != "e" {
		t.Fatalf("choice = %q, %v", choice, err)
	}
	answer, err := console.Ask(context.Background(), "Edit task")
	if err != nil || answer != "new text" {
		t.Fatalf("answer = %q, %v", answer, err)
	}
	if _, err := console.Ask(context.Background(), "More"); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}

	want := "\n[INTERACTIVE] Next task: Task 1\n" +
		"Options: [a]pprove, [e]dit, [s]kip, [n]ew task, [c]hange objective, [q]uit\n" +
		"Your choice: Edit task: More: "
	if out.String() != want {
		t.Fatalf("unexpected console output %q", out.String())
	}
}

func TestConsoleRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	console := NewConsole(strings.NewReader("a\n"), io.Discard)
	if _, err := console.Choose(ctx, "task"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
