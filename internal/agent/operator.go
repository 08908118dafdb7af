package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Choice 是操作者对下一个任务的决定。
type Choice int

const (
	ChoiceApprove Choice = iota
	ChoiceEdit
	ChoiceSkip
	ChoiceNew
	ChoiceChangeObjective
	ChoiceQuit
	ChoiceInvalid
)

// ParseChoice 解析操作者输入，空输入视为批准，无法识别的输入返回 ChoiceInvalid。
func ParseChoice(input string) Choice {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "a":
		return ChoiceApprove
	case "e":
		return ChoiceEdit
	case "s":
		return ChoiceSkip
	case "n":
		return ChoiceNew
	case "c":
		return ChoiceChangeObjective
	case "q":
		return ChoiceQuit
	default:
		return ChoiceInvalid
	}
}

// Operator 是交互循环的人工决策来源。输入结束时返回 io.EOF。
type Operator interface {
	// Choose 展示下一个任务并返回操作者的原始选择。
	Choose(ctx context.Context, task string) (string, error)
	// Ask 展示提示并返回一行输入。
	Ask(ctx context.Context, prompt string) (string, error)
}

// Console 基于行的终端交互实现。
type Console struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole 创建终端交互。
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Choose 实现 Operator 接口。
func (c *Console) Choose(ctx context.Context, task string) (string, error) {
	fmt.Fprintf(c.out, "\n[INTERACTIVE] Next task: %s\n", task)
	fmt.Fprintln(c.out, "Options: [a]pprove, [e]dit, [s]kip, [n]ew task, [c]hange objective, [q]uit")
	return c.Ask(ctx, "Your choice")
}

// Ask 实现 Operator 接口。
func (c *Console) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(c.out, "%s: ", prompt)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}
