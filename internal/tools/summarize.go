package tools

import (
	"context"
	"errors"
	"strings"

	"AutoAgent/internal/llm"
)

// SummaryPrompt 构造摘要请求。
func SummaryPrompt(text string) string {
	return "Summarize the following text:\n" + text
}

func summarizeTool(client llm.Client) Tool {
	return Tool{
		Name:        "summarize_text",
		Description: "Summarize text with the completion backend.",
		Run: func(ctx context.Context, arg string) (string, error) {
			if client == nil {
				return "", errors.New("no completion backend configured for summarization")
			}
			if strings.TrimSpace(arg) == "" {
				return "", errors.New("nothing to summarize")
			}
			return client.Generate(ctx, SummaryPrompt(arg))
		},
	}
}
