package agent

import (
	"context"
	"errors"
	"io"
	"reflect"
	"regexp"
	"strings"
	"testing"

	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/events"
	"AutoAgent/internal/storage"
)

// scriptedOperator 按顺序返回预置输入，耗尽后返回 io.EOF。
type scriptedOperator struct {
	inputs   []string
	shown    []string
	asked    []string
	onChoose func(task string)
}

func (s *scriptedOperator) next() (string, error) {
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	return in, nil
}

func (s *scriptedOperator) Choose(_ context.Context, task string) (string, error) {
	s.shown = append(s.shown, task)
	if s.onChoose != nil {
		s.onChoose(task)
	}
	return s.next()
}

func (s *scriptedOperator) Ask(_ context.Context, prompt string) (string, error) {
	s.asked = append(s.asked, prompt)
	return s.next()
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRunLoopHaikuScenario(t *testing.T) {
	f := newFixture(t)
	f.reply("Task 1\nTask 2", "TOOL: uuid_generator: ", NoFurtherAction)

	var queueAtSecondPrompt []string
	op := &scriptedOperator{inputs: []string{"a", "q"}}
	op.onChoose = func(task string) {
		if task == "Task 2" {
			queueAtSecondPrompt = append([]string{task}, f.agent.Tasks()...)
		}
	}

	if err := f.agent.RunLoop(context.Background(), "Write a haiku", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := f.agent.History()
	if len(history) != 1 || history[0].Task != "Task 1" {
		t.Fatalf("unexpected history %+v", history)
	}
	const prefix = "TOOL: uuid_generator: \n[TOOL_OUTPUT] "
	if !strings.HasPrefix(history[0].Result, prefix) || !uuidPattern.MatchString(strings.TrimPrefix(history[0].Result, prefix)) {
		t.Fatalf("unexpected result %q", history[0].Result)
	}
	stored, _ := f.results.Load(context.Background())
	if !reflect.DeepEqual(stored, history) {
		t.Fatalf("record not persisted: %+v", stored)
	}
	if !reflect.DeepEqual(queueAtSecondPrompt, []string{"Task 2"}) {
		t.Fatalf("reflection sentinel must leave the queue as [Task 2], got %q", queueAtSecondPrompt)
	}
	if !reflect.DeepEqual(f.agent.Tasks(), []string{"Task 2"}) {
		t.Fatalf("quit must leave the remaining task queued, got %q", f.agent.Tasks())
	}
}

func TestRunLoopQuitLeavesTasksUnexecuted(t *testing.T) {
	f := newFixture(t)
	f.reply("Task 1\nTask 2")
	op := &scriptedOperator{inputs: []string{"q"}}

	if err := f.agent.RunLoop(context.Background(), "Write a haiku", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(f.agent.Tasks(), []string{"Task 1", "Task 2"}) {
		t.Fatalf("both tasks should remain, got %q", f.agent.Tasks())
	}
	if f.results.Saves() != 0 || f.index.Len() != 0 || f.llm.Remaining() != 0 || len(f.llm.Prompts()) != 1 {
		t.Fatalf("quit must not execute, persist or remember anything")
	}
	if !strings.Contains(f.out.String(), "[INFO] Exiting agent loop.") {
		t.Fatalf("missing exit notice in %q", f.out.String())
	}
}

func TestRunLoopOperatorChoices(t *testing.T) {
	f := newFixture(t)
	f.reply(
		"alpha\nbeta\ngamma\ndelta",
		"edited result", NoFurtherAction, // e -> "alpha v2"
		"inserted result", NoFurtherAction, // n -> "inserted", then approve
		"delta result", NoFurtherAction, // invalid choice approves delta
	)
	op := &scriptedOperator{inputs: []string{
		"e", "alpha v2", // alpha edited
		"s",             // beta skipped
		"n", "inserted", // gamma dropped, inserted goes first
		"",  // approve inserted
		"x", // invalid choice on delta
	}}

	if err := f.agent.RunLoop(context.Background(), "Greek letters", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tasks []string
	for _, record := range f.agent.History() {
		tasks = append(tasks, record.Task)
	}
	if want := []string{"alpha v2", "inserted", "delta"}; !reflect.DeepEqual(tasks, want) {
		t.Fatalf("executed %q, want %q", tasks, want)
	}
	if want := []string{"alpha", "beta", "gamma", "inserted", "delta"}; !reflect.DeepEqual(op.shown, want) {
		t.Fatalf("shown %q, want %q", op.shown, want)
	}
	if want := []string{"Edit task", "Enter new task"}; !reflect.DeepEqual(op.asked, want) {
		t.Fatalf("asked %q, want %q", op.asked, want)
	}
	out := f.out.String()
	if !strings.Contains(out, "[INFO] Task skipped.") || !strings.Contains(out, "[WARN] Invalid choice. Approving by default.") {
		t.Fatalf("missing console notices in %q", out)
	}
}

func TestRunLoopEmptyEditDropsTask(t *testing.T) {
	f := newFixture(t)
	f.reply("one\ntwo")
	op := &scriptedOperator{inputs: []string{"e", "", "q"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.agent.History()) != 0 || !reflect.DeepEqual(f.agent.Tasks(), []string{"two"}) {
		t.Fatalf("empty edit should drop the task, queue %q", f.agent.Tasks())
	}
}

func TestRunLoopChangeObjective(t *testing.T) {
	f := newFixture(t)
	f.reply("old 1\nold 2", "new 1\nnew 2")
	op := &scriptedOperator{inputs: []string{"c", "Plant a garden", "q"}}

	if err := f.agent.RunLoop(context.Background(), "Write a haiku", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.agent.Objective() != "Plant a garden" || !reflect.DeepEqual(f.agent.Tasks(), []string{"new 1", "new 2"}) {
		t.Fatalf("objective %q, queue %q", f.agent.Objective(), f.agent.Tasks())
	}
	if want := []string{"old 1", "new 1"}; !reflect.DeepEqual(op.shown, want) {
		t.Fatalf("shown %q, want %q", op.shown, want)
	}
	want := []events.Type{events.TypeTasksGenerated, events.TypeTasksGenerated, events.TypeObjectiveChanged}
	if got := f.events.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events %v, want %v", got, want)
	}
}

func TestRunLoopGenerationFailureKeepsTaskForRetry(t *testing.T) {
	f := newFixture(t)
	f.reply("one\ntwo")
	f.fail(errors.New("backend down"))
	f.reply("one done", NoFurtherAction)
	op := &scriptedOperator{inputs: []string{"a", "a", "q"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("generation failures must not stop the loop: %v", err)
	}
	if want := []string{"one", "one", "two"}; !reflect.DeepEqual(op.shown, want) {
		t.Fatalf("shown %q, want %q", op.shown, want)
	}
	history := f.agent.History()
	if len(history) != 1 || history[0].Task != "one" || history[0].Result != "one done" {
		t.Fatalf("unexpected history %+v", history)
	}
	if got := f.agent.Tasks(); !reflect.DeepEqual(got, []string{"two"}) {
		t.Fatalf("queue after quit %q", got)
	}
	if !strings.Contains(f.out.String(), "[ERROR]") {
		t.Fatalf("failure should be reported, got %q", f.out.String())
	}
}

func TestRunLoopFailedTaskCanBeSkipped(t *testing.T) {
	f := newFixture(t)
	f.reply("one\ntwo")
	f.fail(errors.New("backend down"))
	f.reply("two done", NoFurtherAction)
	op := &scriptedOperator{inputs: []string{"a", "s", "a"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"one", "one", "two"}; !reflect.DeepEqual(op.shown, want) {
		t.Fatalf("shown %q, want %q", op.shown, want)
	}
	history := f.agent.History()
	if len(history) != 1 || history[0].Task != "two" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestRunLoopReflectionFailureDoesNotRequeue(t *testing.T) {
	f := newFixture(t)
	f.reply("one", "one done")
	f.fail(errors.New("backend down"))
	op := &scriptedOperator{inputs: []string{"a"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(op.shown) != 1 || len(f.agent.Tasks()) != 0 || len(f.agent.History()) != 1 {
		t.Fatalf("persisted task must not be offered again: shown %q queue %q", op.shown, f.agent.Tasks())
	}
}

func TestRunLoopPersistenceFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.results.FailWith(errors.New("read-only file system"))
	f.reply("one\ntwo", "one done")
	op := &scriptedOperator{inputs: []string{"a", "a"}}

	err := f.agent.RunLoop(context.Background(), "goal", op)
	if xerrors.CodeOf(err) != xerrors.CodePersistenceFailure {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if len(op.shown) != 1 {
		t.Fatalf("loop must stop after the fatal error, shown %q", op.shown)
	}
}

func TestRunLoopInitialGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.reply("")
	op := &scriptedOperator{}

	err := f.agent.RunLoop(context.Background(), "goal", op)
	if xerrors.CodeOf(err) != xerrors.CodeGenerationFailure {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if len(op.shown) != 0 {
		t.Fatalf("operator must not be asked without tasks")
	}
}

func TestRunLoopEndOfInputQuits(t *testing.T) {
	f := newFixture(t)
	f.reply("one\ntwo")
	if err := f.agent.RunLoop(context.Background(), "goal", &scriptedOperator{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(f.agent.Tasks(), []string{"one", "two"}) {
		t.Fatalf("unexpected queue %q", f.agent.Tasks())
	}
}

func TestRunLoopMaxIterations(t *testing.T) {
	f := newFixture(t, WithMaxIterations(1))
	f.reply("one\ntwo\nthree", "one done", NoFurtherAction)
	op := &scriptedOperator{inputs: []string{"a", "a", "a"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.agent.History()) != 1 || !reflect.DeepEqual(f.agent.Tasks(), []string{"two", "three"}) {
		t.Fatalf("history %+v, queue %q", f.agent.History(), f.agent.Tasks())
	}
}

func TestRunLoopStopsWhenQueueDrains(t *testing.T) {
	f := newFixture(t)
	f.reply("only", "only done", "follow up", "follow done", NoFurtherAction)
	op := &scriptedOperator{inputs: []string{"a", "a", "a"}}

	if err := f.agent.RunLoop(context.Background(), "goal", op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []storage.Record{{Task: "only", Result: "only done"}, {Task: "follow up", Result: "follow done"}}
	if !reflect.DeepEqual(f.agent.History(), want) {
		t.Fatalf("history %+v", f.agent.History())
	}
	if len(op.inputs) != 1 {
		t.Fatalf("loop should end once the queue is empty")
	}
}

func TestRunLoopHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.reply("one\ntwo")
	ctx, cancel := context.WithCancel(context.Background())
	op := &scriptedOperator{inputs: []string{"s", "s"}}
	op.onChoose = func(string) { cancel() }

	if err := f.agent.RunLoop(ctx, "goal", op); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(op.shown) != 1 {
		t.Fatalf("loop should stop after cancellation")
	}
}
