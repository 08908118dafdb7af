package storage

import (
	"context"
	"sync"
)

// Record 是一次已完成任务的持久化结构，写入后不可修改。
type Record struct {
	Task   string `json:"task"`
	Result string `json:"result"`
}

// Store 抽象已完成任务列表的持久化。每次 Save 都写入完整列表，
// 返回前必须已经落盘；Load 在启动时恢复完整历史。
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Close() error
}

// MemoryStore 在内存中保存列表，用于测试或无需持久化的场景。
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	saves   int
	failure error
}

// NewMemoryStore 创建内存存储，可选地预置历史。
func NewMemoryStore(initial ...Record) *MemoryStore {
	return &MemoryStore{records: append([]Record(nil), initial...)}
}

// Load 返回当前保存的完整列表副本。
func (m *MemoryStore) Load(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records...), nil
}

// Save 覆盖保存的列表。
func (m *MemoryStore) Save(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	m.records = append([]Record(nil), records...)
	m.saves++
	return nil
}

// FailWith 让后续的 Save 返回指定错误，传入 nil 恢复正常。
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Saves 返回成功写入的次数。
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close 对内存存储无操作。
func (m *MemoryStore) Close() error { return nil }
