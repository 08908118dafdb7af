package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Client 定义了调用补全后端的统一接口：输入提示词，返回纯文本。
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func 允许把普通函数适配为 Client。
type Func func(ctx context.Context, prompt string) (string, error)

// Generate 实现 Client 接口。
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrScriptExhausted 表示预置回复已经全部消费完毕。
var ErrScriptExhausted = errors.New("scripted llm: no replies left")

// Scripted 按顺序返回预置回复，并记录收到的提示词，主要用于测试。
type Scripted struct {
	mu      sync.Mutex
	replies []ScriptedReply
	prompts []string
}

// ScriptedReply 是一次预置的返回，Err 非空时代表后端失败。
type ScriptedReply struct {
	Text string
	Err  error
}

// NewScripted 使用纯文本回复构建 Scripted 客户端。
func NewScripted(replies ...string) *Scripted {
	s := &Scripted{}
	for _, reply := range replies {
		s.replies = append(s.replies, ScriptedReply{Text: reply})
	}
	return s
}

// Push 追加一条回复。
func (s *Scripted) Push(reply ScriptedReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
}

// Generate 弹出队首回复。
func (s *Scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", ErrScriptExhausted
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next.Text, next.Err
}

// Prompts 返回目前收到的全部提示词副本。
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Remaining 返回尚未消费的回复数量。
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Truncate 按 rune 截断文本，超出部分以 "..." 结尾。
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
