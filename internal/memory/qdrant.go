package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// qdrantAPI 是 Qdrant 客户端中被使用到的方法集合，便于测试替换。
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantConfig 描述远程集合。
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// Qdrant 是远程向量索引，使用余弦距离。
type Qdrant struct {
	client     qdrantAPI
	collection string
}

var _ Index = (*Qdrant)(nil)

// OpenQdrant 连接 Qdrant，并在集合不存在时按维度创建。
func OpenQdrant(ctx context.Context, cfg QdrantConfig) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	store, err := newQdrant(ctx, client, cfg.Collection, cfg.Dimensions)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func newQdrant(ctx context.Context, client qdrantAPI, collection string, dims int) (*Qdrant, error) {
	if collection == "" {
		return nil, errors.New("qdrant collection name is empty")
	}
	if dims <= 0 {
		return nil, errors.New("qdrant vector size must be positive")
	}
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("create collection %s: %w", collection, err)
		}
	}
	return &Qdrant{client: client, collection: collection}, nil
}

// Add 以 UUID 作为点 ID 写入，等待服务端确认。
func (q *Qdrant) Add(ctx context.Context, id string, vector []float32, meta Metadata) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"task":   meta.Task,
					"result": meta.Result,
				}),
			},
		},
	})
	return err
}

// Search 返回服务端按分数降序排列的结果。
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(points))
	for _, point := range points {
		match := Match{Score: float64(point.GetScore())}
		if point.GetId() != nil {
			match.ID = point.GetId().GetUuid()
		}
		payload := point.GetPayload()
		if v, ok := payload["task"]; ok {
			match.Metadata.Task = v.GetStringValue()
		}
		if v, ok := payload["result"]; ok {
			match.Metadata.Result = v.GetStringValue()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close 关闭 gRPC 连接。
func (q *Qdrant) Close() error {
	return q.client.Close()
}
