package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"

	"AutoAgent/internal/embedding"
)

// Chromem 基于 chromem-go 的嵌入式向量索引，可持久化到本地目录。
type Chromem struct {
	collection *chromem.Collection
}

var _ Index = (*Chromem)(nil)

// OpenChromem 打开（或创建）持久化目录下的集合。
func OpenChromem(path string, compress bool, name string, embedder embedding.Embedder) (*Chromem, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db %s: %w", path, err)
	}
	return NewChromem(db, name, embedder)
}

// NewChromem 在已有的 chromem DB 上创建索引。
func NewChromem(db *chromem.DB, name string, embedder embedding.Embedder) (*Chromem, error) {
	if db == nil {
		return nil, errors.New("chromem db is nil")
	}
	var embed chromem.EmbeddingFunc
	if embedder != nil {
		embed = func(ctx context.Context, text string) ([]float32, error) {
			return embedder.Embed(ctx, text)
		}
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	return &Chromem{collection: collection}, nil
}

// Add 写入带向量的文档，元数据以字符串形式保存。
func (c *Chromem) Add(ctx context.Context, id string, vector []float32, meta Metadata) error {
	return c.collection.AddDocument(ctx, chromem.Document{
		ID: id,
		Metadata: map[string]string{
			"task":   meta.Task,
			"result": meta.Result,
		},
		Embedding: append([]float32(nil), vector...),
		Content:   meta.Task,
	})
}

// Search 查询最相似的条目，topK 会被截断到集合大小。
func (c *Chromem) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	count := c.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := c.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Score: float64(r.Similarity),
			ID:    r.ID,
			Metadata: Metadata{
				Task:   r.Metadata["task"],
				Result: r.Metadata["result"],
			},
		})
	}
	return matches, nil
}

// Close 持久化 DB 每次写入都会落盘，这里无需额外处理。
func (c *Chromem) Close() error { return nil }
