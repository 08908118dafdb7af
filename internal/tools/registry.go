package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Func 是单个工具的调用约定：接收一个字符串参数，返回文本结果或错误。
// 多个参数使用 "::" 拼接在同一个字符串中。
type Func func(ctx context.Context, arg string) (string, error)

// Tool 描述一个可被任务结果调用的能力。
type Tool struct {
	Name        string
	Description string
	Run         Func
}

// Outcome 是一次派发的结果，无论成功与否都可以直接表示为文本。
type Outcome struct {
	Output string
	Failed bool
}

// String 返回结果文本。
func (o Outcome) String() string {
	return o.Output
}

// Registry 维护工具名到实现的映射，名称区分大小写。
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// ErrDuplicateTool 表示重复注册了同名工具。
var ErrDuplicateTool = errors.New("tool already registered")

// NewRegistry 创建注册表并注册给定工具，重名时后者被忽略并返回错误。
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	var errs error
	for _, tool := range tools {
		errs = errors.Join(errs, r.Register(tool))
	}
	return r, errs
}

// Register 注册工具。
func (r *Registry) Register(tool Tool) error {
	name := strings.TrimSpace(tool.Name)
	if name == "" || name != tool.Name {
		return fmt.Errorf("invalid tool name %q", tool.Name)
	}
	if tool.Run == nil {
		return fmt.Errorf("tool %s has no implementation", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	return nil
}

// Remove 注销工具，返回是否存在。
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tools[name]
	delete(r.tools, name)
	return ok
}

// Lookup 按名称查找工具。
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List 返回按名称排序的工具列表。
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		list = append(list, tool)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Len 返回已注册工具数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch 调用指定工具。未知工具、工具返回错误或 panic 都被转换为 Failed 的结果，
// 不会向调用方抛出。
func (r *Registry) Dispatch(ctx context.Context, name, arg string) (outcome Outcome) {
	tool, ok := r.Lookup(name)
	if !ok {
		return Outcome{Output: fmt.Sprintf("Tool '%s' not found.", name), Failed: true}
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = Outcome{Output: fmt.Sprintf("tool %s panicked: %v", name, rec), Failed: true}
		}
	}()

	output, err := tool.Run(ctx, arg)
	if err != nil {
		return Outcome{Output: validText(err.Error()), Failed: true}
	}
	return Outcome{Output: validText(output)}
}

// validText 把非法 UTF-8 字节替换为 U+FFFD，输出会原样进入持久化的结果文本。
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// SplitArgs 按 "::" 拆分参数，要求恰好 n 段；最后一段保留剩余内容。
func SplitArgs(arg string, n int) ([]string, error) {
	parts := strings.SplitN(arg, "::", n)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d '::'-separated arguments, got %d", n, len(parts))
	}
	return parts, nil
}
