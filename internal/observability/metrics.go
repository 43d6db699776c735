package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "caseforge"

// Metrics holds every collector the service exports. All methods are safe on
// a nil receiver so callers can use Current() without checking.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpStreams  *prometheus.HistogramVec
	streamBytes  *prometheus.CounterVec

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec

	stageDuration *prometheus.HistogramVec
	streamFrames  *prometheus.CounterVec

	routingChanges *prometheus.CounterVec

	persistTasks      *prometheus.CounterVec
	persistQueueDepth prometheus.Gauge
	deadLetters       *prometheus.CounterVec

	searchCache *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide metrics once.
func Init() *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// NewMetrics builds a Metrics on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpStreams: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "stream_duration_seconds",
			Help:    "Lifetime of NDJSON and SSE responses.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"route"}),
		streamBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "stream_bytes_total",
			Help: "Bytes written to streaming responses.",
		}, []string{"route"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generator", Name: "requests_total",
			Help: "Generator calls by schema and outcome.",
		}, []string{"model", "schema", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "generator", Name: "request_duration_seconds",
			Help:    "Generator call latency, including tool steps.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"model", "schema"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generator", Name: "tokens_total",
			Help: "Tokens consumed by direction.",
		}, []string{"model", "direction"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generator", Name: "tool_calls_total",
			Help: "Tool invocations requested by the generator.",
		}, []string{"tool", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "stage_duration_seconds",
			Help:    "Pipeline stage durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"pipeline", "stage", "status"}),
		streamFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "frames_total",
			Help: "Frames emitted to streaming callers.",
		}, []string{"pipeline", "type"}),
		routingChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "routing", Name: "changes_total",
			Help: "Routing rows written or retracted.",
		}, []string{"action"}),
		persistTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persist", Name: "tasks_total",
			Help: "Background persistence tasks by outcome.",
		}, []string{"kind", "status"}),
		persistQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "persist", Name: "queue_depth",
			Help: "Tasks waiting for a persistence worker.",
		}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "persist", Name: "dead_letters_total",
			Help: "Persistence tasks that failed and were dead-lettered.",
		}, []string{"kind"}),
		searchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "search", Name: "cache_lookups_total",
			Help: "Scholarly search cache lookups.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpLatency, m.httpStreams, m.streamBytes,
		m.llmRequests, m.llmLatency, m.llmTokens, m.toolCalls,
		m.stageDuration, m.streamFrames,
		m.routingChanges,
		m.persistTasks, m.persistQueueDepth, m.deadLetters,
		m.searchCache,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// ObserveHTTPStream records a streaming response. Streams are counted with
// the other requests but timed on their own histogram.
func (m *Metrics) ObserveHTTPStream(method, route string, status int, dur time.Duration, bytes int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpStreams.WithLabelValues(route).Observe(dur.Seconds())
	if bytes > 0 {
		m.streamBytes.WithLabelValues(route).Add(float64(bytes))
	}
}

func (m *Metrics) ObserveLLMRequest(model, schema, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(model, schema, status).Inc()
	m.llmLatency.WithLabelValues(model, schema).Observe(dur.Seconds())
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) ObserveStage(pipeline, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(pipeline, stage, status).Observe(dur.Seconds())
}

func (m *Metrics) IncFrame(pipeline, frameType string) {
	if m == nil {
		return
	}
	m.streamFrames.WithLabelValues(pipeline, frameType).Inc()
}

func (m *Metrics) AddRoutingChange(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.routingChanges.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) ObservePersistTask(kind, status string) {
	if m == nil {
		return
	}
	m.persistTasks.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) SetPersistQueueDepth(n int) {
	if m == nil {
		return
	}
	m.persistQueueDepth.Set(float64(n))
}

func (m *Metrics) IncDeadLetter(kind string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSearchCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.searchCache.WithLabelValues(result).Inc()
}
