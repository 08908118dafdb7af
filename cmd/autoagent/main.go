package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"AutoAgent/internal/agent"
	"AutoAgent/internal/api"
	"AutoAgent/internal/config"
	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/observability/metrics"
	"AutoAgent/pkg/logger"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// 构建时通过 ldflags 注入。
var (
	version = "dev"
	commit  = "unknown"
)

// appContext 是各子命令共享的运行环境。
type appContext struct {
	ctx    context.Context
	config string
	stdin  io.Reader
	stdout io.Writer
}

// main 是 AutoAgent 命令行的入口。
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("autoagent"),
		kong.Description("An autonomous task-execution agent with an operator in the loop."),
		kong.UsageOnError(),
		kongVars(),
	)
	err := parser.Run(&appContext{ctx: ctx, config: cli.Config, stdin: os.Stdin, stdout: os.Stdout})
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "关闭日志失败: %v\n", syncErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "autoagent: %v\n", err)
		if xerrors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化日志。
func (a *appContext) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.config)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "加载配置失败")
	}
	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Events: logger.EventLogConfig{
			Path:       cfg.Logging.EventLog,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	}
}

// Run 执行交互循环。
func (c *RunCmd) Run(app *appContext) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	log := logger.Named("main")

	rt, err := buildRuntime(app.ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	recorder := metrics.New()
	if addr := strings.TrimSpace(cfg.API.Listen); addr != "" {
		server := api.NewServer(addr, rt.results, rt.memory, recorder.Handler(), logger.Named("api"))
		go func() {
			if err := server.Start(app.ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("状态接口退出", slog.String("addr", addr), slog.Any("error", err))
			}
		}()
	}

	ag := agent.New(rt.llm, rt.tools, rt.memory, rt.results,
		agent.WithMaxTasks(cfg.TaskManager.MaxTasks),
		agent.WithContextDepth(cfg.TaskManager.ContextDepth),
		agent.WithRecall(cfg.TaskManager.RecallTopK),
		agent.WithMaxIterations(cfg.TaskManager.MaxIterations),
		agent.WithPublisher(rt.publisher),
		agent.WithMetrics(recorder),
		agent.WithLogger(logger.Named("agent")),
		agent.WithEventLog(logger.Events()),
		agent.WithOutput(app.stdout),
	)
	if err := ag.LoadHistory(app.ctx); err != nil {
		return err
	}
	if err := rt.seedMemory(app.ctx, ag.History()); err != nil {
		log.Warn("重放历史到记忆库失败", slog.Any("error", err))
	}

	fmt.Fprintf(app.stdout, "[INFO] Starting AutoAgent with objective: %s\n", c.Objective)
	err = ag.RunLoop(app.ctx, c.Objective, agent.NewConsole(app.stdin, app.stdout))
	if errors.Is(err, context.Canceled) {
		log.Info("收到退出信号")
		return nil
	}
	return err
}

// Run 打印历史记录。
func (c *HistoryCmd) Run(app *appContext) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	store, err := openResults(app.ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Load(app.ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodePersistenceFailure, err, "加载历史结果失败")
	}
	start := 0
	if c.Limit > 0 && len(records) > c.Limit {
		start = len(records) - c.Limit
	}
	for i := start; i < len(records); i++ {
		fmt.Fprintf(app.stdout, "#%d Task: %s\nResult: %s\n\n", i+1, records[i].Task, records[i].Result)
	}
	if len(records) == 0 {
		fmt.Fprintln(app.stdout, "No completed tasks.")
	}
	return nil
}

// Run 检索记忆库。
func (c *RecallCmd) Run(app *appContext) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	mem, err := openMemory(app.ctx, cfg)
	if err != nil {
		return err
	}
	defer mem.store.Close()

	if mem.local {
		store, err := openResults(app.ctx, cfg)
		if err != nil {
			return err
		}
		records, err := store.Load(app.ctx)
		_ = store.Close()
		if err != nil {
			return xerrors.Wrap(xerrors.CodePersistenceFailure, err, "加载历史结果失败")
		}
		if err := seed(app.ctx, mem.store, records); err != nil {
			return err
		}
	}

	matches, err := mem.store.Query(app.ctx, c.Text, c.TopK)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(app.stdout, "No matching memories.")
		return nil
	}
	for _, match := range matches {
		fmt.Fprintf(app.stdout, "%.4f  %s\n  Task: %s\n  Result: %s\n", match.Score, match.ID, match.Metadata.Task, match.Metadata.Result)
	}
	return nil
}

// Run 列出已注册工具。
func (c *ToolsCmd) Run(app *appContext) error {
	cfg, err := app.loadConfig()
	if err != nil {
		return err
	}
	registry, closeChain, err := buildTools(app.ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeChain()

	w := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	for _, tool := range registry.List() {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
	}
	return w.Flush()
}

// Run 打印版本信息。
func (c *VersionCmd) Run(app *appContext) error {
	fmt.Fprintf(app.stdout, "autoagent %s (%s)\n", version, commit)
	return nil
}
