package tools

import (
	"fmt"
	"net/http"
	"time"

	"AutoAgent/internal/llm"
	"AutoAgent/internal/web3"
)

// Deps 汇总内置工具需要的外部依赖，零值即可使用。
type Deps struct {
	// HTTPClient 供网络类工具使用，为空时使用 http.DefaultClient。
	HTTPClient *http.Client
	// Summarizer 为 summarize_text 提供补全能力。
	Summarizer llm.Client
	// Chain 非空时注册 eth_* 工具。
	Chain web3.Reader
	// AllowShell 控制 shell_command 是否真正执行。
	AllowShell bool
	// Disabled 列出不注册的工具名。
	Disabled []string

	Now          func() time.Time
	SearchURL    string
	WikipediaURL string
}

// NewDefaultRegistry 注册全部内置工具。
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	var all []Tool
	all = append(all, textTools()...)
	all = append(all, mathTools()...)
	all = append(all, systemTools(deps)...)
	all = append(all, networkTools(deps)...)
	all = append(all, chainTools(deps.Chain)...)
	all = append(all, summarizeTool(deps.Summarizer))

	registry, err := NewRegistry(all...)
	if err != nil {
		return nil, err
	}
	for _, name := range deps.Disabled {
		if !registry.Remove(name) {
			return nil, fmt.Errorf("cannot disable unknown tool %q", name)
		}
	}
	return registry, nil
}
