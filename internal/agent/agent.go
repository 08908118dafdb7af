package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/events"
	"AutoAgent/internal/llm"
	"AutoAgent/internal/memory"
	"AutoAgent/internal/observability/metrics"
	"AutoAgent/internal/storage"
	"AutoAgent/internal/tools"
	"AutoAgent/pkg/logger"
)

const (
	defaultMaxTasks     = 10
	defaultContextDepth = 5
)

// 事件日志使用的生命周期标签。
const (
	EventGenerateTasks   = "GENERATE_TASKS"
	EventPrioritizeTasks = "PRIORITIZE_TASKS"
	EventExecuteTask     = "EXECUTE_TASK"
	EventToolUse         = "TOOL_USE"
	EventToolError       = "TOOL_ERROR"
	EventFeedback        = "FEEDBACK"
	EventUserChoice      = "USER_CHOICE"
	EventSkipTask        = "SKIP_TASK"
	EventNewTask         = "NEW_TASK"
	EventChangeObjective = "CHANGE_OBJECTIVE"
	EventInvalidChoice   = "INVALID_CHOICE"
	EventQuit            = "QUIT"
	EventTaskFailed      = "TASK_FAILED"
	EventIterationLimit  = "ITERATION_LIMIT"
	EventTaskRequeued    = "TASK_REQUEUED"
)

// Dispatcher 按名称调用工具，结果总能以文本表示。
type Dispatcher interface {
	Dispatch(ctx context.Context, name, arg string) tools.Outcome
}

// Memory 是编排器使用的记忆库能力子集。
type Memory interface {
	Remember(ctx context.Context, task, result string) (string, error)
	Query(ctx context.Context, text string, topK int) ([]memory.Match, error)
}

// Agent 编排任务的生成、排序、执行与反思，是系统的业务核心。
// Agent 不是并发安全的，所有操作应在同一个控制流中调用。
type Agent struct {
	llmClient     llm.Client
	tools         Dispatcher
	memory        Memory
	results       storage.Store
	publisher     events.Publisher
	metrics       *metrics.Recorder
	log           *slog.Logger
	eventLog      *slog.Logger
	out           io.Writer
	now           func() time.Time
	maxTasks      int
	contextDepth  int
	recallTopK    int
	maxIterations int

	objective string
	queue     Queue
	completed []storage.Record
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithMaxTasks 设置队列允许保留的最大任务数。
func WithMaxTasks(n int) Option {
	return func(a *Agent) { a.maxTasks = n }
}

// WithContextDepth 设置生成任务时作为上下文的最近记录数量。
func WithContextDepth(n int) Option {
	return func(a *Agent) { a.contextDepth = n }
}

// WithRecall 在生成任务时额外检索与目标最相关的 k 条记忆，k <= 0 表示关闭。
func WithRecall(k int) Option {
	return func(a *Agent) { a.recallTopK = k }
}

// WithMaxIterations 限制交互循环处理的任务数，0 表示不限制。
func WithMaxIterations(n int) Option {
	return func(a *Agent) { a.maxIterations = n }
}

// WithPublisher 配置生命周期事件的发布者。
func WithPublisher(p events.Publisher) Option {
	return func(a *Agent) { a.publisher = p }
}

// WithMetrics 配置指标记录器。
func WithMetrics(r *metrics.Recorder) Option {
	return func(a *Agent) { a.metrics = r }
}

// WithLogger 设置诊断日志。
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.log = l }
}

// WithEventLog 设置生命周期事件日志。
func WithEventLog(l *slog.Logger) Option {
	return func(a *Agent) { a.eventLog = l }
}

// WithOutput 设置面向操作者的输出，例如 [INFO]/[OUTPUT]/[FEEDBACK] 行。
func WithOutput(w io.Writer) Option {
	return func(a *Agent) { a.out = w }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New 创建一个 Agent。results 为必需项，memory 可以为空。
func New(llmClient llm.Client, dispatcher Dispatcher, mem Memory, results storage.Store, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:    llmClient,
		tools:        dispatcher,
		memory:       mem,
		results:      results,
		maxTasks:     defaultMaxTasks,
		contextDepth: defaultContextDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxTasks <= 0 {
		ag.maxTasks = defaultMaxTasks
	}
	if ag.contextDepth < 0 {
		ag.contextDepth = defaultContextDepth
	}
	if ag.publisher == nil {
		ag.publisher = events.Nop{}
	}
	if ag.log == nil {
		ag.log = logger.Named("agent")
	}
	if ag.eventLog == nil {
		ag.eventLog = logger.Events()
	}
	if ag.out == nil {
		ag.out = io.Discard
	}
	if ag.now == nil {
		ag.now = time.Now
	}
	return ag
}

// LoadHistory 从持久化存储加载已完成的记录，作为后续生成任务的上下文。
func (a *Agent) LoadHistory(ctx context.Context) error {
	if a.results == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置结果存储")
	}
	records, err := a.results.Load(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodePersistenceFailure, err, "加载历史结果失败")
	}
	a.completed = records
	a.log.Info("已加载历史结果", slog.Int("records", len(records)))
	return nil
}

// Objective 返回当前目标。
func (a *Agent) Objective() string { return a.objective }

// Tasks 返回当前待执行任务。
func (a *Agent) Tasks() []string { return a.queue.Tasks() }

// History 返回已完成记录的副本。
func (a *Agent) History() []storage.Record {
	out := make([]storage.Record, len(a.completed))
	copy(out, a.completed)
	return out
}

// GenerateTasks 让模型为目标生成任务列表并替换当前队列。模型调用失败或回复中
// 没有任何任务时返回 GenerationFailure，此时队列保持不变。
func (a *Agent) GenerateTasks(ctx context.Context, objective string) error {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "目标不能为空")
	}
	if a.llmClient == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}

	prompt := generationPrompt(objective, a.recent(), a.recall(ctx, objective))
	reply, err := a.llmClient.Generate(ctx, prompt)
	if err != nil {
		a.metrics.Generation("generate", true)
		return xerrors.Wrap(xerrors.CodeGenerationFailure, err, "生成任务失败")
	}
	tasks := SplitLines(reply)
	if len(tasks) == 0 {
		a.metrics.Generation("generate", true)
		return xerrors.New(xerrors.CodeGenerationFailure, "模型未返回任何任务")
	}
	a.metrics.Generation("generate", false)

	if len(tasks) > a.maxTasks {
		tasks = tasks[:a.maxTasks]
	}
	a.objective = objective
	a.queue.Replace(tasks)
	a.metrics.QueueLength(a.queue.Len())

	a.eventLog.Info(EventGenerateTasks,
		slog.String("objective", objective),
		slog.String("prompt", prompt),
		slog.Any("tasks", tasks))
	a.publish(ctx, events.Event{Type: events.TypeTasksGenerated, Tasks: tasks})
	return nil
}

// PrioritizeTasks 将队列截断到最大任务数，保持已有顺序。
func (a *Agent) PrioritizeTasks() {
	a.queue.Truncate(a.maxTasks)
	a.metrics.QueueLength(a.queue.Len())
	a.eventLog.Info(EventPrioritizeTasks, slog.Any("tasks", a.queue.Tasks()))
}

// ExecuteTask 执行单个任务：调用模型、按需调用工具、持久化记录、写入记忆，
// 最后根据反思结果追加后续任务。
//
// 模型调用失败时不产生任何记录；持久化失败返回致命的 PersistenceFailure；
// 记录持久化之后发生的记忆或反思失败会在返回的记录之外一并返回。
func (a *Agent) ExecuteTask(ctx context.Context, task string) (storage.Record, error) {
	if a.llmClient == nil {
		return storage.Record{}, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}

	result, err := a.llmClient.Generate(ctx, executionPrompt(task))
	if err != nil {
		a.metrics.Generation("execute", true)
		return storage.Record{}, xerrors.Wrap(xerrors.CodeGenerationFailure, err, "执行任务失败",
			xerrors.WithMetadata("task", task))
	}
	a.metrics.Generation("execute", false)
	result = a.applyTool(ctx, result)

	record := storage.Record{Task: task, Result: result}
	if err := a.persist(ctx, record); err != nil {
		return storage.Record{}, err
	}
	a.metrics.TaskExecuted()
	a.eventLog.Info(EventExecuteTask, slog.String("task", task), slog.String("result", result))
	fmt.Fprintf(a.out, "[INFO] Executing: %s\n[OUTPUT] %s\n", task, result)
	a.publish(ctx, events.Event{Type: events.TypeTaskCompleted, Task: task, Result: result})

	var errs error
	if a.memory != nil {
		if _, err := a.memory.Remember(ctx, task, result); err != nil {
			a.log.Warn("写入记忆失败", slog.String("task", task), slog.Any("error", err))
			errs = stdErrors.Join(errs, err)
		}
	}
	if err := a.reflect(ctx, record); err != nil {
		errs = stdErrors.Join(errs, err)
	}
	return record, errs
}

// applyTool 解析回复；若请求了工具则调用并把结果追加到回复末尾。
func (a *Agent) applyTool(ctx context.Context, result string) string {
	reply, err := ParseReply(result)
	if err != nil {
		a.metrics.ToolCall("invalid", true)
		a.eventLog.Info(EventToolError, slog.String("error", err.Error()))
		return result + "\n[TOOL_ERROR] " + err.Error()
	}

	switch r := reply.(type) {
	case ToolInvocation:
		if a.tools == nil {
			a.metrics.ToolCall(r.Name, true)
			msg := fmt.Sprintf("Tool '%s' not found.", r.Name)
			a.eventLog.Info(EventToolError, slog.String("tool", r.Name), slog.String("error", msg))
			return result + "\n[TOOL_ERROR] " + msg
		}
		outcome := a.tools.Dispatch(ctx, r.Name, r.Arg)
		a.metrics.ToolCall(r.Name, outcome.Failed)
		if outcome.Failed {
			a.eventLog.Info(EventToolError, slog.String("tool", r.Name), slog.String("error", outcome.Output))
			return result + "\n[TOOL_ERROR] " + outcome.Output
		}
		a.eventLog.Info(EventToolUse,
			slog.String("tool", r.Name),
			slog.String("arg", r.Arg),
			slog.String("output", outcome.Output))
		return result + "\n[TOOL_OUTPUT] " + outcome.Output
	default:
		return result
	}
}

// persist 以整体重写的方式保存完整历史，成功后才更新内存中的历史。
func (a *Agent) persist(ctx context.Context, record storage.Record) error {
	if a.results == nil {
		return xerrors.New(xerrors.CodePersistenceFailure, "未配置结果存储")
	}
	next := make([]storage.Record, len(a.completed), len(a.completed)+1)
	copy(next, a.completed)
	next = append(next, record)
	if err := a.results.Save(ctx, next); err != nil {
		a.log.Error("保存任务结果失败", slog.String("task", record.Task), slog.Any("error", err))
		return xerrors.Wrap(xerrors.CodePersistenceFailure, err, "保存任务结果失败",
			xerrors.WithMetadata("task", record.Task))
	}
	a.completed = next
	return nil
}

func (a *Agent) reflect(ctx context.Context, record storage.Record) error {
	feedback, err := a.llmClient.Generate(ctx, reflectionPrompt(record.Task, record.Result))
	if err != nil {
		a.metrics.Generation("reflect", true)
		return xerrors.Wrap(xerrors.CodeGenerationFailure, err, "反思任务结果失败",
			xerrors.WithMetadata("task", record.Task))
	}
	a.metrics.Generation("reflect", false)
	a.eventLog.Info(EventFeedback, slog.String("feedback", feedback))
	fmt.Fprintf(a.out, "[FEEDBACK] %s\n", feedback)

	if strings.Contains(feedback, NoFurtherAction) {
		return nil
	}
	if followUps := SplitLines(feedback); len(followUps) > 0 {
		a.queue.Append(followUps...)
		a.PrioritizeTasks()
	}
	return nil
}

// recent 返回最近 contextDepth 条记录。
func (a *Agent) recent() []storage.Record {
	if a.contextDepth == 0 || len(a.completed) == 0 {
		return nil
	}
	start := max(0, len(a.completed)-a.contextDepth)
	return a.completed[start:]
}

// recall 检索与目标相关的记忆，失败时只记录日志。
func (a *Agent) recall(ctx context.Context, objective string) []memory.Match {
	if a.memory == nil || a.recallTopK <= 0 {
		return nil
	}
	matches, err := a.memory.Query(ctx, objective, a.recallTopK)
	if err != nil {
		a.log.Warn("检索相关记忆失败", slog.Any("error", err))
		return nil
	}
	return matches
}

func (a *Agent) publish(ctx context.Context, event events.Event) {
	event.Objective = a.objective
	event.At = a.now().UTC()
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.log.Warn("发布事件失败", slog.String("type", string(event.Type)), slog.Any("error", err))
	}
}
