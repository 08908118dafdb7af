package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"AutoAgent/internal/storage"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// listClient 是结果存储依赖的最小 Redis 能力。
type listClient interface {
	Replace(ctx context.Context, key string, values []string) error
	Range(ctx context.Context, key string) ([]string, error)
	Close() error
}

// ResultStore 把每条记录序列化为 JSON 后按顺序保存在一个 list 中。
type ResultStore struct {
	client listClient
	key    string
}

var _ storage.Store = (*ResultStore)(nil)

// Open 连接 Redis 并校验连通性。
func Open(ctx context.Context, cfg Config) (*ResultStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return newResultStore(&goRedisList{client: client}, cfg.Key), nil
}

func newResultStore(client listClient, key string) *ResultStore {
	if key == "" {
		key = "autoagent:results"
	}
	return &ResultStore{client: client, key: key}
}

// Load 读取完整列表。
func (s *ResultStore) Load(ctx context.Context) ([]storage.Record, error) {
	values, err := s.client.Range(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 结果失败: %w", err)
	}
	records := make([]storage.Record, 0, len(values))
	for idx, raw := range values {
		var record storage.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("解析第 %d 条结果失败: %w", idx, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Save 原子地替换整个列表。
func (s *ResultStore) Save(ctx context.Context, records []storage.Record) error {
	values := make([]string, 0, len(records))
	for _, record := range records {
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("序列化结果失败: %w", err)
		}
		values = append(values, string(encoded))
	}
	if err := s.client.Replace(ctx, s.key, values); err != nil {
		return fmt.Errorf("写入 Redis 结果失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *ResultStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

type goRedisList struct {
	client *goredis.Client
}

func (g *goRedisList) Replace(ctx context.Context, key string, values []string) error {
	_, err := g.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = v
			}
			pipe.RPush(ctx, key, args...)
		}
		return nil
	})
	return err
}

func (g *goRedisList) Range(ctx context.Context, key string) ([]string, error) {
	values, err := g.client.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return values, err
}

func (g *goRedisList) Close() error {
	return g.client.Close()
}
