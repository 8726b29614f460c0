// Package metrics provides internal Prometheus metrics collection for the
// weather intelligence service. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds every Prometheus metric exposed by the service.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	weatherRequestsTotal   *prometheus.CounterVec
	weatherRequestDuration *prometheus.HistogramVec

	breakerStateTransitions *prometheus.CounterVec
	breakerState            *prometheus.GaugeVec

	chatToolIterations *prometheus.HistogramVec
	chatToolCalls      *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	storeQueryDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates and registers the metrics collector.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_size_bytes", Help: "HTTP request size in bytes", Buckets: prometheus.ExponentialBuckets(100, 10, 8)},
		[]string{"method", "path"},
	)
	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_response_size_bytes", Help: "HTTP response size in bytes", Buckets: prometheus.ExponentialBuckets(100, 10, 8)},
		[]string{"method", "path"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "llm_requests_total", Help: "Total number of LLM requests"},
		[]string{"model", "status"},
	)
	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "llm_request_duration_seconds", Help: "LLM request duration in seconds", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30}},
		[]string{"model"},
	)
	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "llm_tokens_used_total", Help: "Total number of tokens used"},
		[]string{"model", "type"}, // type: prompt, completion
	)

	c.weatherRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total", Help: "Total weather fetches by provenance"},
		[]string{"provider"}, // cache, tomorrow, open-meteo, fallback
	)
	c.weatherRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "weather_request_duration_seconds", Help: "Weather pipeline latency in seconds", Buckets: prometheus.DefBuckets},
		[]string{"provider"},
	)

	c.breakerStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "breaker_state_transitions_total", Help: "Total circuit breaker state transitions"},
		[]string{"provider", "from_state", "to_state"},
	)
	c.breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "breaker_state", Help: "Current breaker state (0=closed,1=half_open,2=open)"},
		[]string{"provider"},
	)

	c.chatToolIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "chat_tool_iterations", Help: "Number of LLM turns used per chat request", Buckets: []float64{1, 2, 3, 4, 5}},
		[]string{"outcome"},
	)
	c.chatToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "chat_tool_calls_total", Help: "Total tool invocations from the chat orchestrator"},
		[]string{"tool", "status"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_hits_total", Help: "Total number of cache hits"},
		[]string{"cache_type"},
	)
	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_misses_total", Help: "Total number of cache misses"},
		[]string{"cache_type"},
	)

	c.storeQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "store_query_duration_seconds", Help: "Document store query duration in seconds", Buckets: prometheus.DefBuckets},
		[]string{"collection", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records an HTTP request observation.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordLLMRequest records an LLM call observation.
func (c *Collector) RecordLLMRequest(model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(model, status).Inc()
	c.llmRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordWeatherFetch records a weather pipeline step by provenance.
func (c *Collector) RecordWeatherFetch(provider string, duration time.Duration) {
	c.weatherRequestsTotal.WithLabelValues(provider).Inc()
	c.weatherRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change.
func (c *Collector) RecordBreakerTransition(provider, from, to string, stateValue float64) {
	c.breakerStateTransitions.WithLabelValues(provider, from, to).Inc()
	c.breakerState.WithLabelValues(provider).Set(stateValue)
}

// RecordChatTurn records the number of LLM turns a chat request consumed.
func (c *Collector) RecordChatTurn(outcome string, iterations int) {
	c.chatToolIterations.WithLabelValues(outcome).Observe(float64(iterations))
}

// RecordToolCall records a single tool invocation from the chat orchestrator.
func (c *Collector) RecordToolCall(tool, status string) {
	c.chatToolCalls.WithLabelValues(tool, status).Inc()
}

// RecordCacheHit records a cache hit for the named cache tier.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the named cache tier.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordStoreQuery records a document store round trip.
func (c *Collector) RecordStoreQuery(collection, operation string, duration time.Duration) {
	c.storeQueryDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
