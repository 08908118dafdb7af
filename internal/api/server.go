package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"AutoAgent/internal/memory"
	"AutoAgent/internal/storage"
	"AutoAgent/pkg/logger"
)

const (
	defaultResultLimit = 20
	defaultTopK        = 5
	maxTopK            = 50
)

// Recaller 是状态接口使用的记忆检索能力。
type Recaller interface {
	Query(ctx context.Context, text string, topK int) ([]memory.Match, error)
}

// Server 负责暴露只读状态接口，数据直接取自结果存储与记忆库。
type Server struct {
	addr    string
	results storage.Store
	memory  Recaller
	metrics http.Handler
	log     *slog.Logger
}

// NewServer 构造状态服务实例。metrics 为空时不挂载 /metrics。
func NewServer(addr string, results storage.Store, mem Recaller, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{addr: addr, results: results, memory: mem, metrics: metrics, log: log}
}

// Handler 返回完整路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/results", s.handleResults)
	mux.HandleFunc("/api/v1/memories", s.handleMemories)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("状态接口已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type resultsResponse struct {
	Total   int              `json:"total"`
	Records []storage.Record `json:"records"`
}

// handleResults 返回最近 limit 条已完成记录，按完成顺序排列。
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.results == nil {
		http.Error(w, "结果存储未初始化", http.StatusServiceUnavailable)
		return
	}

	limit := queryInt(r, "limit", defaultResultLimit)
	records, err := s.results.Load(r.Context())
	if err != nil {
		s.log.Warn("读取结果失败", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total := len(records)
	if limit > 0 && total > limit {
		records = records[total-limit:]
	}
	if records == nil {
		records = []storage.Record{}
	}
	writeJSON(w, resultsResponse{Total: total, Records: records})
}

type memoryMatch struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Task   string  `json:"task"`
	Result string  `json:"result"`
}

// handleMemories 按 q 检索记忆库。
func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.memory == nil {
		http.Error(w, "记忆库未初始化", http.StatusServiceUnavailable)
		return
	}
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		http.Error(w, "缺少查询参数 q", http.StatusBadRequest)
		return
	}
	topK := min(queryInt(r, "top_k", defaultTopK), maxTopK)

	matches, err := s.memory.Query(r.Context(), text, topK)
	if err != nil {
		s.log.Warn("检索记忆失败", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]memoryMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, memoryMatch{ID: m.ID, Score: m.Score, Task: m.Metadata.Task, Result: m.Metadata.Result})
	}
	writeJSON(w, out)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
