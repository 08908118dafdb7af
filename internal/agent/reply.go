package agent

import (
	"errors"
	"strings"
)

// ToolMarker 标记一次工具调用请求。
const ToolMarker = "TOOL:"

// Reply 是执行阶段模型回复的解析结果，取值为 Plain 或 ToolInvocation。
type Reply interface {
	isReply()
}

// Plain 表示普通文本回复。
type Plain struct {
	Text string
}

// ToolInvocation 表示 "TOOL: name: arg" 形式的工具调用请求。
type ToolInvocation struct {
	Name string
	Arg  string
}

func (Plain) isReply()          {}
func (ToolInvocation) isReply() {}

// ErrMalformedInvocation 表示以 TOOL: 开头但缺少参数分隔符的回复。
var ErrMalformedInvocation = errors.New("malformed tool invocation: expected 'TOOL: name: arg'")

// ParseReply 解析模型回复。去除首尾空白后以 TOOL: 开头的回复按前两个冒号拆分为
// 工具名与参数（均去除空白）；缺少第二个冒号时返回 ErrMalformedInvocation。
func ParseReply(raw string) (Reply, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, ToolMarker) {
		return Plain{Text: raw}, nil
	}
	name, arg, ok := strings.Cut(trimmed[len(ToolMarker):], ":")
	if !ok {
		return nil, ErrMalformedInvocation
	}
	return ToolInvocation{Name: strings.TrimSpace(name), Arg: strings.TrimSpace(arg)}, nil
}
