// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Namespace 是库内指标统一使用的 Prometheus namespace。
const Namespace = "faciliter"

// 请求结果标签值
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// Embedding 指标
	embeddingRequestsTotal   *prometheus.CounterVec
	embeddingRequestDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec

	logger *zap.Logger
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default 返回注册在 prometheus.DefaultRegisterer 上的全局收集器。
// 首次调用时完成注册，之后复用同一实例。
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(Namespace, prometheus.DefaultRegisterer, zap.NewNop())
	})
	return defaultCollector
}

// NewCollector 创建指标收集器并注册到 reg（nil 时使用默认 Registerer）。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// Embedding 指标
	c.embeddingRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.embeddingRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"prefix"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"prefix"},
	)

	c.cacheErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache operation errors",
		},
		[]string{"prefix", "op"}, // op: get, set, delete, ping
	)

	logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordEmbeddingRequest 记录 Embedding 请求
func (c *Collector) RecordEmbeddingRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.embeddingRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.embeddingRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(prefix string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(prefix).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(prefix string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(prefix).Inc()
}

// RecordCacheError 记录缓存操作错误
func (c *Collector) RecordCacheError(prefix, op string) {
	if c == nil {
		return
	}
	c.cacheErrors.WithLabelValues(prefix, op).Inc()
}
