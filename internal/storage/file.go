package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore 把完整列表以缩进 JSON 数组写入单个文件。
// 写入先落到同目录的临时文件并 fsync，再原子替换目标文件。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore 创建文件存储，目录不存在时自动创建。
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("results file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建结果目录失败: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path 返回结果文件路径。
func (f *FileStore) Path() string {
	return f.path
}

// Load 读取结果文件，文件不存在时返回空列表。
func (f *FileStore) Load(_ context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	content, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取结果文件失败: %w", err)
	}
	if len(content) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("解析结果文件失败: %w", err)
	}
	return records, nil
}

// Save 重写整个结果文件。
func (f *FileStore) Save(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if records == nil {
		records = []Record{}
	}
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(encoded); err != nil {
		cleanup()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("替换结果文件失败: %w", err)
	}
	syncDir(filepath.Dir(f.path))
	return nil
}

// Close 对文件存储无操作。
func (f *FileStore) Close() error { return nil }

// syncDir 尽力同步目录项，部分平台不支持时忽略错误。
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
