package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func echoTool(name string) Tool {
	return Tool{Name: name, Run: func(_ context.Context, arg string) (string, error) { return arg, nil }}
}

func TestRegistryRegisterAndList(t *testing.T) {
	registry, err := NewRegistry(echoTool("b"), echoTool("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.Register(echoTool("a")); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := registry.Register(echoTool(" padded")); err == nil {
		t.Fatalf("expected error for padded name")
	}
	if err := registry.Register(Tool{Name: "nil"}); err == nil {
		t.Fatalf("expected error for missing implementation")
	}

	list := registry.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected listing %+v", list)
	}
	if !registry.Remove("a") || registry.Remove("a") || registry.Len() != 1 {
		t.Fatalf("remove did not behave as expected")
	}
}

func TestDispatch(t *testing.T) {
	registry, _ := NewRegistry(
		echoTool("echo"),
		Tool{Name: "broken", Run: func(context.Context, string) (string, error) { return "", errors.New("boom") }},
		Tool{Name: "panics", Run: func(context.Context, string) (string, error) { panic("kaboom") }},
	)
	ctx := context.Background()

	if out := registry.Dispatch(ctx, "echo", "hi"); out.Failed || out.Output != "hi" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out := registry.Dispatch(ctx, "missing", "x"); !out.Failed || out.Output != "Tool 'missing' not found." {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out := registry.Dispatch(ctx, "Echo", "x"); !out.Failed {
		t.Fatalf("names must be case-sensitive")
	}
	if out := registry.Dispatch(ctx, "broken", ""); !out.Failed || out.Output != "boom" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out := registry.Dispatch(ctx, "panics", ""); !out.Failed || !strings.Contains(out.String(), "kaboom") {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestSplitArgs(t *testing.T) {
	parts, err := SplitArgs("notes.txt::a::b", 2)
	if err != nil || parts[0] != "notes.txt" || parts[1] != "a::b" {
		t.Fatalf("unexpected split %q, %v", parts, err)
	}
	if _, err := SplitArgs("no-separator", 2); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry, err := NewDefaultRegistry(Deps{Disabled: []string{"shell_command"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"math_calculator", "base64_encode", "keccak256_hasher", "summarize_text", "wikipedia_search"} {
		if _, ok := registry.Lookup(name); !ok {
			t.Fatalf("expected %s to be registered", name)
		}
	}
	for _, name := range []string{"shell_command", "eth_balance"} {
		if _, ok := registry.Lookup(name); ok {
			t.Fatalf("did not expect %s to be registered", name)
		}
	}

	if _, err := NewDefaultRegistry(Deps{Disabled: []string{"nope"}}); err == nil {
		t.Fatalf("expected error when disabling unknown tool")
	}
}

func TestDispatchReplacesInvalidUTF8(t *testing.T) {
	registry, err := NewRegistry(
		Tool{Name: "binary", Run: func(context.Context, string) (string, error) { return "ok \xff\xfe end", nil }},
		Tool{Name: "binary_err", Run: func(context.Context, string) (string, error) { return "", errors.New("bad \xff") }},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()

	if out := registry.Dispatch(ctx, "binary", ""); out.Output != "ok \uFFFD end" || !utf8.ValidString(out.Output) {
		t.Fatalf("unexpected output %q", out.Output)
	}
	if out := registry.Dispatch(ctx, "binary_err", ""); !out.Failed || out.Output != "bad \uFFFD" {
		t.Fatalf("unexpected error output %q", out.Output)
	}
}
