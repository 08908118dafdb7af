package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"

	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/events"
	"AutoAgent/internal/storage"
)

// RunLoop 为目标生成任务，然后逐个询问操作者如何处理队首任务，直到队列为空、
// 操作者退出或输入结束。退出时当前任务放回队首，未执行的任务保持原样。只有致命错误（例如持久化失败）和上下文取消会中止循环，
// 单个任务的生成失败会被报告，任务留在队首由操作者决定重试、跳过或退出。
func (a *Agent) RunLoop(ctx context.Context, objective string, op Operator) error {
	if op == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置操作者交互")
	}
	if err := a.GenerateTasks(ctx, objective); err != nil {
		return err
	}
	a.PrioritizeTasks()

	for processed := 0; a.queue.Len() > 0; processed++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.maxIterations > 0 && processed >= a.maxIterations {
			a.eventLog.Info(EventIterationLimit, slog.Int("limit", a.maxIterations), slog.Int("remaining", a.queue.Len()))
			fmt.Fprintf(a.out, "[INFO] Iteration limit of %d reached, %d task(s) left.\n", a.maxIterations, a.queue.Len())
			return nil
		}

		task, _ := a.queue.PopFront()
		a.metrics.QueueLength(a.queue.Len())
		raw, err := op.Choose(ctx, task)
		if stdErrors.Is(err, io.EOF) {
			raw = "q"
		} else if err != nil {
			return err
		}
		a.eventLog.Info(EventUserChoice, slog.String("task", task), slog.String("choice", raw))

		var runErr error
		switch ParseChoice(raw) {
		case ChoiceApprove:
			runErr = a.run(ctx, task)
		case ChoiceEdit:
			edited, err := a.ask(ctx, op, "Edit task")
			if err != nil {
				return err
			}
			if edited != "" {
				runErr = a.run(ctx, edited)
			}
		case ChoiceSkip:
			fmt.Fprintln(a.out, "[INFO] Task skipped.")
			a.eventLog.Info(EventSkipTask, slog.String("task", task))
		case ChoiceNew:
			next, err := a.ask(ctx, op, "Enter new task")
			if err != nil {
				return err
			}
			if next != "" {
				a.queue.PushFront(next)
				a.metrics.QueueLength(a.queue.Len())
				a.eventLog.Info(EventNewTask, slog.String("task", next))
			}
		case ChoiceChangeObjective:
			next, err := a.ask(ctx, op, "Enter new objective")
			if err != nil {
				return err
			}
			if next != "" {
				runErr = a.changeObjective(ctx, next)
			}
		case ChoiceQuit:
			a.queue.PushFront(task)
			a.metrics.QueueLength(a.queue.Len())
			fmt.Fprintln(a.out, "[INFO] Exiting agent loop.")
			a.eventLog.Info(EventQuit)
			return nil
		default:
			fmt.Fprintln(a.out, "[WARN] Invalid choice. Approving by default.")
			a.eventLog.Warn(EventInvalidChoice, slog.String("choice", raw), slog.String("task", task))
			runErr = a.run(ctx, task)
		}
		if runErr != nil {
			return runErr
		}
	}
	return nil
}

// ask 读取一行补充输入，输入结束视为空输入。
func (a *Agent) ask(ctx context.Context, op Operator, prompt string) (string, error) {
	answer, err := op.Ask(ctx, prompt)
	if stdErrors.Is(err, io.EOF) {
		return "", nil
	}
	return answer, err
}

// run 执行任务，只把致命错误返回给循环。
// 执行阶段的模型调用失败时没有产生记录，任务放回队首等待操作员再次选择。
func (a *Agent) run(ctx context.Context, task string) error {
	record, err := a.ExecuteTask(ctx, task)
	if err != nil && record == (storage.Record{}) && xerrors.CodeOf(err) == xerrors.CodeGenerationFailure {
		a.queue.PushFront(task)
		a.eventLog.Info(EventTaskRequeued, slog.String("task", task))
	}
	return a.triage(task, err)
}

func (a *Agent) changeObjective(ctx context.Context, objective string) error {
	a.eventLog.Info(EventChangeObjective, slog.String("objective", objective))
	if err := a.GenerateTasks(ctx, objective); err != nil {
		return a.triage("", err)
	}
	a.publish(ctx, events.Event{Type: events.TypeObjectiveChanged, Tasks: a.queue.Tasks()})
	a.PrioritizeTasks()
	return nil
}

// triage 报告非致命错误并吞掉它们；致命错误与上下文取消原样返回。
func (a *Agent) triage(task string, err error) error {
	if err == nil {
		return nil
	}
	if xerrors.IsFatal(err) || stdErrors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintf(a.out, "[ERROR] %v\n", err)
	a.eventLog.Warn(EventTaskFailed, slog.String("task", task), slog.String("code", string(xerrors.CodeOf(err))), slog.Any("error", err))
	return nil
}
