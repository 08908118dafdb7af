package main

import "github.com/alecthomas/kong"

// CLI 定义命令行结构。
type CLI struct {
	Config string `short:"c" default:"config.yaml" env:"AUTOAGENT_CONFIG" help:"Path to the YAML configuration file."`

	Run     RunCmd     `cmd:"" help:"Run the interactive agent loop for an objective."`
	History HistoryCmd `cmd:"" help:"Print completed task records."`
	Recall  RecallCmd  `cmd:"" help:"Query the memory store for related records."`
	Tools   ToolsCmd   `cmd:"" help:"List registered tools."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// RunCmd 启动交互循环。
type RunCmd struct {
	Objective string `short:"o" required:"" help:"Objective for the agent."`
}

// HistoryCmd 打印已完成的记录。
type HistoryCmd struct {
	Limit int `short:"n" default:"0" help:"Show only the last N records (0 = all)."`
}

// RecallCmd 检索记忆库。
type RecallCmd struct {
	Text string `arg:"" help:"Text to search for."`
	TopK int    `short:"k" default:"5" help:"Number of matches to return."`
}

// ToolsCmd 列出工具。
type ToolsCmd struct{}

// VersionCmd 打印版本。
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{"version": version}
}
