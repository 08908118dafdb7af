package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"AutoAgent/internal/embedding"
)

const defaultModel = openaisdk.EmbeddingModelTextEmbedding3Small

// Config 描述 Embeddings API 的调用参数。
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
}

// Embedder 通过 openai-go SDK 调用 Embeddings 接口。
type Embedder struct {
	client openaisdk.Client
	model  string
	dims   int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New 创建 Embedder。Dimensions 必须为正数，返回向量长度与之一致。
func New(cfg Config) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Embedder{
		client: openaisdk.NewClient(opts...),
		model:  model,
		dims:   cfg.Dimensions,
	}, nil
}

// Dimensions 返回向量维度。
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Embed 请求单条文本的向量。
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:          e.model,
		Dimensions:     openaisdk.Int(int64(e.dims)),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("请求 OpenAI Embeddings 失败: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("OpenAI Embeddings 响应为空")
	}
	raw := resp.Data[0].Embedding
	if len(raw) != e.dims {
		return nil, fmt.Errorf("向量维度不匹配: 期望 %d, 实际 %d", e.dims, len(raw))
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
