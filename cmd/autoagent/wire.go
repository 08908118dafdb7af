package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AutoAgent/internal/config"
	"AutoAgent/internal/embedding"
	embopenai "AutoAgent/internal/embedding/openai"
	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/events"
	"AutoAgent/internal/llm"
	"AutoAgent/internal/llm/openai"
	"AutoAgent/internal/llm/pythonbridge"
	"AutoAgent/internal/memory"
	"AutoAgent/internal/storage"
	"AutoAgent/internal/storage/mysql"
	"AutoAgent/internal/storage/redis"
	"AutoAgent/internal/tools"
	"AutoAgent/internal/web3/ethereum"
	"AutoAgent/pkg/logger"
)

// runtime 聚合一次运行所需的全部后端，Close 按创建的逆序释放。
type runtime struct {
	llm       llm.Client
	tools     *tools.Registry
	memory    *memory.Store
	results   storage.Store
	publisher events.Publisher

	localMemory bool
	closers     []func() error
}

// 后端构造函数，测试中可替换。
var (
	openResultsFunc   = openResults
	openPublisherFunc = openPublisher
)

// buildRuntime 按配置创建补全后端、记忆库、结果存储、事件发布器和工具注册表。
// 任一后端初始化失败都视为致命错误，已经打开的后端会按逆序关闭。
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{}
	ready := false
	defer func() {
		if !ready {
			rt.Close()
		}
	}()

	client, err := createLLMClient(cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化大模型客户端失败")
	}
	rt.llm = client

	mem, err := openMemory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.memory, rt.localMemory = mem.store, mem.local
	rt.closers = append(rt.closers, mem.store.Close)

	results, err := openResultsFunc(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.results = results
	rt.closers = append(rt.closers, results.Close)

	publisher, err := openPublisherFunc(cfg)
	if err != nil {
		return nil, err
	}
	rt.publisher = publisher
	rt.closers = append(rt.closers, publisher.Close)

	registry, closeChain, err := buildTools(ctx, cfg, rt.llm)
	if err != nil {
		return nil, err
	}
	rt.tools = registry
	rt.closers = append(rt.closers, func() error { closeChain(); return nil })

	ready = true
	return rt, nil
}

// seedMemory 在进程内索引启动时重放历史记录，持久化后端无需重放。
func (rt *runtime) seedMemory(ctx context.Context, records []storage.Record) error {
	if !rt.localMemory {
		return nil
	}
	return seed(ctx, rt.memory, records)
}

// Close 释放所有后端。
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	log := logger.Named("main")
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Warn("关闭后端失败", slog.Any("error", err))
		}
	}
	rt.closers = nil
}

func seed(ctx context.Context, store *memory.Store, records []storage.Record) error {
	for _, record := range records {
		if _, err := store.Remember(ctx, record.Task, record.Result); err != nil {
			return err
		}
	}
	return nil
}

// createLLMClient 根据 provider 创建补全后端。
func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.OpenAI.ResolveAPIKey(),
			BaseURL:   cfg.LLM.OpenAI.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.OpenAI.Timeout(),
		})
	case "python_bridge":
		script := pythonbridge.ResolveScriptPath(cfg.LLM.Python.WorkingDir, cfg.LLM.Python.ScriptPath)
		return pythonbridge.NewClient(cfg.LLM.Python.PythonExecutable, script, cfg.LLM.Python.WorkingDir,
			pythonbridge.WithModel(cfg.LLM.Model),
			pythonbridge.WithMaxTokens(cfg.LLM.MaxTokens),
		)
	default:
		return nil, fmt.Errorf("不支持的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "hashing":
		return embedding.NewHashing(cfg.Embedding.Dimensions)
	case "openai":
		return embopenai.New(embopenai.Config{
			APIKey:     cfg.Embedding.OpenAI.ResolveAPIKey(),
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("不支持的 embedding provider: %s", cfg.Embedding.Provider)
	}
}

type openedMemory struct {
	store *memory.Store
	local bool
}

// openMemory 创建向量化器与索引后端。
func openMemory(ctx context.Context, cfg *config.Config) (openedMemory, error) {
	embedder, err := createEmbedder(cfg)
	if err != nil {
		return openedMemory{}, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化 embedding 失败")
	}

	var index memory.Index
	switch cfg.Memory.Provider {
	case "local":
		index = memory.NewLocal()
	case "chromem":
		index, err = memory.OpenChromem(cfg.Memory.Chromem.Path, cfg.Memory.Chromem.Compress, cfg.Memory.Index, embedder)
	case "qdrant":
		index, err = memory.OpenQdrant(ctx, memory.QdrantConfig{
			Host:       cfg.Memory.Qdrant.Host,
			Port:       cfg.Memory.Qdrant.Port,
			APIKey:     cfg.Memory.Qdrant.APIKey,
			UseTLS:     cfg.Memory.Qdrant.UseTLS,
			Collection: cfg.Memory.Index,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		err = fmt.Errorf("不支持的向量库 provider: %s", cfg.Memory.Provider)
	}
	if err != nil {
		return openedMemory{}, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化记忆库失败",
			xerrors.WithMetadata("provider", cfg.Memory.Provider))
	}
	return openedMemory{store: memory.New(embedder, index), local: cfg.Memory.Provider == "local"}, nil
}

// openResults 创建结果存储。
func openResults(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Storage.Driver {
	case "file":
		store, err = storage.NewFileStore(cfg.Storage.ResultsFile)
	case "mysql":
		store, err = mysql.Open(ctx, mysqlConfig(cfg.Storage.MySQL))
	case "redis":
		store, err = redis.Open(ctx, redis.Config{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Key:      cfg.Storage.Redis.Key,
		})
	default:
		err = fmt.Errorf("不支持的存储驱动: %s", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化结果存储失败",
			xerrors.WithMetadata("driver", cfg.Storage.Driver))
	}
	return store, nil
}

func mysqlConfig(c config.MySQLConfig) mysql.Config {
	return mysql.Config{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.ConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(c.ConnMaxIdleTimeSeconds) * time.Second,
	}
}

func openPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "none":
		return events.Nop{}, nil
	case "rabbitmq":
		pub, err := events.NewRabbitMQ(events.RabbitMQConfig{
			URL:      cfg.Events.RabbitMQ.URL,
			Exchange: cfg.Events.RabbitMQ.Exchange,
			Durable:  cfg.Events.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化事件发布失败")
		}
		return pub, nil
	default:
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "不支持的事件驱动: "+cfg.Events.Driver)
	}
}

// buildTools 创建默认工具注册表，配置了 RPC 节点时额外注册链上工具。
func buildTools(ctx context.Context, cfg *config.Config, summarizer llm.Client) (*tools.Registry, func(), error) {
	deps := tools.Deps{
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.Tools.HTTPTimeout) * time.Second},
		Summarizer: summarizer,
		AllowShell: cfg.Tools.AllowShell,
		Disabled:   cfg.Tools.Disabled,
	}

	closeChain := func() {}
	if rpcURL := strings.TrimSpace(cfg.Tools.Ethereum.RPCURL); rpcURL != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{Name: "ethereum", RPCURL: rpcURL})
		if err != nil {
			return nil, nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接以太坊节点失败")
		}
		deps.Chain = client
		closeChain = client.Close
	}

	registry, err := tools.NewDefaultRegistry(deps)
	if err != nil {
		closeChain()
		return nil, nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "注册工具失败")
	}
	return registry, closeChain, nil
}
