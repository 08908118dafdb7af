package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"AutoAgent/internal/embedding"
	xerrors "AutoAgent/internal/errors"
)

// Metadata 是记忆条目携带的任务与结果。
type Metadata struct {
	Task   string `json:"task"`
	Result string `json:"result"`
}

// Match 表示一次相似度检索命中的条目。
type Match struct {
	Score    float64
	ID       string
	Metadata Metadata
}

// Index 是向量索引后端的抽象，条目写入后不可修改。
type Index interface {
	Add(ctx context.Context, id string, vector []float32, meta Metadata) error
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close() error
}

// Store 组合向量化器与索引后端，对外提供 Embed/Add/Query 三个能力。
// 调用方不感知具体使用的是哪种后端。
type Store struct {
	embedder embedding.Embedder
	index    Index
}

// New 创建记忆库。
func New(embedder embedding.Embedder, index Index) *Store {
	return &Store{embedder: embedder, index: index}
}

// NewID 生成新的条目 ID。
func NewID() string {
	return uuid.NewString()
}

// Text 返回用于向量化的条目文本。
func Text(task, result string) string {
	return "Task: " + task + "\nResult: " + result
}

// Embed 计算文本向量。
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMemoryFailure, err, "计算向量失败")
	}
	return vec, nil
}

// Add 写入一条记忆。
func (s *Store) Add(ctx context.Context, id string, vector []float32, meta Metadata) error {
	if strings.TrimSpace(id) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记忆条目 ID 不能为空")
	}
	if err := s.index.Add(ctx, id, vector, meta); err != nil {
		return xerrors.Wrap(xerrors.CodeMemoryFailure, err, "写入记忆失败", xerrors.WithMetadata("id", id))
	}
	return nil
}

// Remember 计算 task+result 的向量并以新 ID 写入，返回条目 ID。
func (s *Store) Remember(ctx context.Context, task, result string) (string, error) {
	vec, err := s.Embed(ctx, Text(task, result))
	if err != nil {
		return "", err
	}
	id := NewID()
	if err := s.Add(ctx, id, vec, Metadata{Task: task, Result: result}); err != nil {
		return "", err
	}
	return id, nil
}

// Query 按余弦相似度降序返回最多 topK 条记忆。
func (s *Store) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMemoryFailure, err, "检索记忆失败")
	}
	return matches, nil
}

// Close 释放后端资源。
func (s *Store) Close() error {
	if s == nil || s.index == nil {
		return nil
	}
	return s.index.Close()
}
