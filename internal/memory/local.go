package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"AutoAgent/internal/embedding"
)

type localEntry struct {
	id     string
	vector []float32
	meta   Metadata
}

// Local 是进程内的向量索引，按插入顺序保存条目。
type Local struct {
	mu      sync.RWMutex
	entries []localEntry
	ids     map[string]struct{}
}

var _ Index = (*Local)(nil)

// NewLocal 创建空的进程内索引。
func NewLocal() *Local {
	return &Local{ids: make(map[string]struct{})}
}

// Add 追加条目，重复 ID 会被拒绝。
func (l *Local) Add(_ context.Context, id string, vector []float32, meta Metadata) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.ids[id]; exists {
		return fmt.Errorf("memory entry %s already exists", id)
	}
	l.ids[id] = struct{}{}
	l.entries = append(l.entries, localEntry{
		id:     id,
		vector: append([]float32(nil), vector...),
		meta:   meta,
	})
	return nil
}

// Search 计算余弦相似度并稳定排序，分数相同时先插入者在前。
func (l *Local) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matches := make([]Match, 0, len(l.entries))
	for _, entry := range l.entries {
		matches = append(matches, Match{
			Score:    embedding.Cosine(vector, entry.vector),
			ID:       entry.id,
			Metadata: entry.meta,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len 返回条目数量。
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close 对进程内索引无操作。
func (l *Local) Close() error { return nil }
