package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 汇总 agent 循环的运行指标。nil Recorder 的所有方法都是空操作。
type Recorder struct {
	registry      *prometheus.Registry
	tasksExecuted prometheus.Counter
	toolCalls     *prometheus.CounterVec
	generations   *prometheus.CounterVec
	queueLength   prometheus.Gauge
}

// New 创建独立注册表上的 Recorder，并附带 Go 运行时指标。
func New() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		tasksExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autoagent_tasks_executed_total",
			Help: "Number of tasks executed and persisted.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoagent_tool_calls_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoagent_generations_total",
			Help: "Completion backend calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoagent_queue_length",
			Help: "Number of pending tasks in the queue.",
		}),
	}
	registry.MustRegister(
		r.tasksExecuted,
		r.toolCalls,
		r.generations,
		r.queueLength,
		collectors.NewGoCollector(),
	)
	return r
}

// TaskExecuted 记录一次完成的任务。
func (r *Recorder) TaskExecuted() {
	if r == nil {
		return
	}
	r.tasksExecuted.Inc()
}

// ToolCall 记录一次工具调用，failed 为 true 时 outcome 为 error。
func (r *Recorder) ToolCall(tool string, failed bool) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, outcome(failed)).Inc()
}

// Generation 记录一次补全调用，stage 为 generate、execute 或 reflect。
func (r *Recorder) Generation(stage string, failed bool) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(stage, outcome(failed)).Inc()
}

// QueueLength 更新待执行队列长度。
func (r *Recorder) QueueLength(n int) {
	if r == nil {
		return
	}
	r.queueLength.Set(float64(n))
}

// Handler 以 Prometheus 文本格式暴露指标。
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
