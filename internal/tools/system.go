package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	maxSleep       = 5 * time.Second
	shellTimeout   = 5 * time.Second
	maxToolOutput  = 1000
	truncateSuffix = "... [truncated]"
)

// ErrShellDisabled 表示配置未允许执行 shell 命令。
var ErrShellDisabled = errors.New("shell_command is disabled")

func systemTools(deps Deps) []Tool {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return []Tool{
		{Name: "current_datetime", Description: "Current local date and time (ISO 8601).", Run: func(context.Context, string) (string, error) {
			return now().Format("2006-01-02T15:04:05.000000"), nil
		}},
		{Name: "timer_sleep", Description: "Sleep for up to 5 seconds.", Run: sleep},
		{Name: "shell_command", Description: "Run a shell command (5s timeout, output truncated).", Run: shellCommand(deps.AllowShell)},
		{Name: "file_read", Description: "Read a text file.", Run: readFile},
		{Name: "write_file", Description: "Write text to a file, argument path::text.", Run: writeFile},
		{Name: "database_query", Description: "Run SQL against a SQLite file, argument db.sqlite::SQL.", Run: queryDatabase},
	}
}

// Truncate 截断超过 maxToolOutput 字符的工具输出并追加标记。
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxToolOutput {
		return text
	}
	return string(runes[:maxToolOutput]) + truncateSuffix
}

func sleep(ctx context.Context, arg string) (string, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", fmt.Errorf("sleep: invalid duration %q", arg)
	}
	seconds = min(seconds, maxSleep.Seconds())
	d := time.Duration(seconds * float64(time.Second))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}
	return fmt.Sprintf("Slept for %s seconds.", formatNumber(d.Seconds())), nil
}

func shellCommand(allowed bool) Func {
	return func(ctx context.Context, arg string) (string, error) {
		if !allowed {
			return "", ErrShellDisabled
		}
		ctx, cancel := context.WithTimeout(ctx, shellTimeout)
		defer cancel()
		output, err := exec.CommandContext(ctx, "sh", "-c", arg).CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("shell: timed out after %s", shellTimeout)
			}
			return "", fmt.Errorf("shell: %w: %s", err, Truncate(strings.TrimSpace(string(output))))
		}
		return Truncate(string(output)), nil
	}
}

func readFile(_ context.Context, arg string) (string, error) {
	data, err := os.ReadFile(strings.TrimSpace(arg))
	if err != nil {
		return "", fmt.Errorf("file read: %w", err)
	}
	return string(data), nil
}

func writeFile(_ context.Context, arg string) (string, error) {
	parts, err := SplitArgs(arg, 2)
	if err != nil {
		return "", fmt.Errorf("file write: %w", err)
	}
	path := strings.TrimSpace(parts[0])
	if path == "" {
		return "", errors.New("file write: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("file write: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(parts[1]), 0o644); err != nil {
		return "", fmt.Errorf("file write: %w", err)
	}
	return "Wrote to " + path, nil
}

func queryDatabase(ctx context.Context, arg string) (string, error) {
	parts, err := SplitArgs(arg, 2)
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	db, err := sql.Open("sqlite3", strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, parts[1])
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	result := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("database: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	return string(encoded), nil
}
