package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 AutoAgent 在启动阶段需要加载的全部配置。
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Memory      MemoryConfig      `yaml:"memory"`
	Storage     StorageConfig     `yaml:"storage"`
	TaskManager TaskManagerConfig `yaml:"task_manager"`
	Tools       ToolsConfig       `yaml:"tools"`
	Events      EventsConfig      `yaml:"events"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
}

// LLMConfig 用于配置补全后端的调用方式。
type LLMConfig struct {
	Provider  string             `yaml:"provider"`
	Model     string             `yaml:"model"`
	MaxTokens int                `yaml:"max_tokens"`
	OpenAI    OpenAIConfig       `yaml:"openai"`
	Python    PythonBridgeConfig `yaml:"python_bridge"`
}

// OpenAIConfig 描述兼容 OpenAI 协议的服务端点。
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout 返回请求超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveAPIKey 优先使用显式配置，其次读取 api_key_env 指向的环境变量。
func (c OpenAIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
	}
	return ""
}

// PythonBridgeConfig 描述通过本地 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `yaml:"python_executable"`
	ScriptPath       string `yaml:"script_path"`
	WorkingDir       string `yaml:"working_dir"`
}

// EmbeddingConfig 配置向量化方式。
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	OpenAI     OpenAIConfig `yaml:"openai"`
}

// MemoryConfig 选择记忆库后端。
type MemoryConfig struct {
	Provider string        `yaml:"provider"`
	Index    string        `yaml:"index"`
	Chromem  ChromemConfig `yaml:"chromem"`
	Qdrant   QdrantConfig  `yaml:"qdrant"`
}

// ChromemConfig 描述嵌入式持久化向量库的位置。
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// QdrantConfig 描述远程 Qdrant 服务。
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// StorageConfig 选择已完成任务的持久化后端。
type StorageConfig struct {
	Driver      string      `yaml:"driver"`
	ResultsFile string      `yaml:"results_file"`
	MySQL       MySQLConfig `yaml:"mysql"`
	Redis       RedisConfig `yaml:"redis"`
}

// MySQLConfig 描述 MySQL 连接池参数。
type MySQLConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `yaml:"conn_max_idle_time_seconds"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// TaskManagerConfig 控制编排循环。
type TaskManagerConfig struct {
	MaxTasks      int `yaml:"max_tasks"`
	ContextDepth  int `yaml:"context_depth"`
	RecallTopK    int `yaml:"recall_top_k"`
	MaxIterations int `yaml:"max_iterations"`
}

// ToolsConfig 控制工具注册表。
type ToolsConfig struct {
	Disabled    []string       `yaml:"disabled"`
	HTTPTimeout int            `yaml:"http_timeout_seconds"`
	AllowShell  bool           `yaml:"allow_shell"`
	Ethereum    EthereumConfig `yaml:"ethereum"`
}

// EthereumConfig 描述链上工具访问的 RPC 节点。
type EthereumConfig struct {
	RPCURL string `yaml:"rpc_url"`
}

// EventsConfig 控制生命周期事件的对外发布。
type EventsConfig struct {
	Driver   string         `yaml:"driver"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Durable  bool   `yaml:"durable"`
}

// APIConfig 控制只读状态接口，Listen 为空时不启动。
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig 控制诊断日志与事件日志。
type LoggingConfig struct {
	Level      string   `yaml:"level"`
	Format     string   `yaml:"format"`
	Outputs    []string `yaml:"outputs"`
	EventLog   string   `yaml:"event_log"`
	MaxSizeMB  int      `yaml:"max_size_mb"`
	MaxBackups int      `yaml:"max_backups"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Load 解析指定路径的 YAML 配置文件，并应用默认值与环境变量覆盖。
// 文件不存在时返回全部默认值。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("配置文件路径为空")
	}

	var cfg Config
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 使用环境变量覆盖敏感或部署相关的字段。
func (c *Config) applyEnv() {
	if model := strings.TrimSpace(os.Getenv("LLM_MODEL_PATH")); model != "" {
		c.LLM.Model = model
	}
	if key := strings.TrimSpace(os.Getenv("QDRANT_API_KEY")); key != "" && c.Memory.Qdrant.APIKey == "" {
		c.Memory.Qdrant.APIKey = key
	}
	if dsn := strings.TrimSpace(os.Getenv("AUTOAGENT_MYSQL_DSN")); dsn != "" {
		c.Storage.MySQL.DSN = dsn
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = baseDir
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}
	dataDir := c.Runtime.DataDir

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.Python.PythonExecutable == "" {
		c.LLM.Python.PythonExecutable = "python3"
	}
	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else {
		c.LLM.Python.WorkingDir = resolve(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hashing"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.OpenAI.APIKeyEnv == "" {
		c.Embedding.OpenAI.APIKeyEnv = c.LLM.OpenAI.APIKeyEnv
	}
	if c.Embedding.OpenAI.BaseURL == "" {
		c.Embedding.OpenAI.BaseURL = c.LLM.OpenAI.BaseURL
	}

	if c.Memory.Provider == "" {
		c.Memory.Provider = "local"
	}
	if c.Memory.Index == "" {
		c.Memory.Index = "babyagi_tasks"
	}
	if c.Memory.Chromem.Path == "" {
		c.Memory.Chromem.Path = filepath.Join(dataDir, "vectors")
	} else {
		c.Memory.Chromem.Path = resolve(baseDir, c.Memory.Chromem.Path)
	}
	if c.Memory.Qdrant.Port == 0 {
		c.Memory.Qdrant.Port = 6334
	}
	if c.Memory.Qdrant.APIKey == "" && c.Memory.Qdrant.APIKeyEnv != "" {
		c.Memory.Qdrant.APIKey = strings.TrimSpace(os.Getenv(c.Memory.Qdrant.APIKeyEnv))
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.ResultsFile == "" {
		c.Storage.ResultsFile = filepath.Join(dataDir, "results.json")
	} else {
		c.Storage.ResultsFile = resolve(baseDir, c.Storage.ResultsFile)
	}
	if c.Storage.Redis.Key == "" {
		c.Storage.Redis.Key = "autoagent:results"
	}

	if c.TaskManager.MaxTasks <= 0 {
		c.TaskManager.MaxTasks = 10
	}
	if c.TaskManager.ContextDepth <= 0 {
		c.TaskManager.ContextDepth = 5
	}

	if c.Tools.HTTPTimeout <= 0 {
		c.Tools.HTTPTimeout = 15
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "autoagent.events"
	}

	if c.Logging.EventLog == "" {
		c.Logging.EventLog = filepath.Join(dataDir, "output.log")
	} else {
		c.Logging.EventLog = resolve(baseDir, c.Logging.EventLog)
	}
}

// Validate 检查相互依赖的字段是否齐全。
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "python_bridge":
	default:
		return fmt.Errorf("未知的大模型 provider: %s", c.LLM.Provider)
	}
	if c.LLM.Provider == "python_bridge" && strings.TrimSpace(c.LLM.Python.ScriptPath) == "" {
		return errors.New("python_bridge 需要配置 script_path")
	}
	switch c.Embedding.Provider {
	case "hashing", "openai":
	default:
		return fmt.Errorf("未知的 embedding provider: %s", c.Embedding.Provider)
	}
	switch c.Memory.Provider {
	case "local", "chromem":
	case "qdrant":
		if strings.TrimSpace(c.Memory.Qdrant.Host) == "" {
			return errors.New("qdrant 需要配置 host")
		}
	default:
		return fmt.Errorf("未知的向量库 provider: %s", c.Memory.Provider)
	}
	switch c.Storage.Driver {
	case "file":
	case "mysql":
		if strings.TrimSpace(c.Storage.MySQL.DSN) == "" {
			return errors.New("mysql 存储需要配置 dsn")
		}
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Address) == "" {
			return errors.New("redis 存储需要配置 address")
		}
	default:
		return fmt.Errorf("未知的存储驱动: %s", c.Storage.Driver)
	}
	switch c.Events.Driver {
	case "none":
	case "rabbitmq":
		if strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
			return errors.New("rabbitmq 事件发布需要配置 url")
		}
	default:
		return fmt.Errorf("未知的事件驱动: %s", c.Events.Driver)
	}
	if c.TaskManager.MaxIterations < 0 {
		return errors.New("max_iterations 不能为负数")
	}
	return nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
