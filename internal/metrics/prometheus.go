package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector provides Prometheus metrics for the goban MCP server.
// A nil collector records nothing.
type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	// MCP Tool metrics
	toolCallsTotal   *prometheus.CounterVec
	toolErrorsTotal  *prometheus.CounterVec
	toolDurationSecs *prometheus.HistogramVec

	// Rate limit metrics
	rateLimitHitsTotal   *prometheus.CounterVec
	rateLimitChecksTotal prometheus.Counter

	// Engine metrics
	movesTotal          *prometheus.CounterVec
	gamesStartedTotal   prometheus.Counter
	gamesFinishedTotal  *prometheus.CounterVec
	engineHealthChecks  *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	searchesTotal       *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	staleSearchesTotal  *prometheus.CounterVec
	searchIterationsSum *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	cacheSize        prometheus.Gauge
	cacheItems       prometheus.Gauge
}

// NewPrometheusCollector registers every collector on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	f := promauto.With(reg)

	return &PrometheusCollector{
		gatherer: reg,

		// MCP Tool metrics
		toolCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_mcp_tool_calls_total",
				Help: "Total number of MCP tool calls",
			},
			[]string{"tool", "status"},
		),
		toolErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_mcp_tool_errors_total",
				Help: "Total number of MCP tool errors",
			},
			[]string{"tool", "error_type"},
		),
		toolDurationSecs: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goban_mcp_tool_duration_seconds",
				Help:    "Duration of MCP tool calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		// Rate limit metrics
		rateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_mcp_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"scope", "tool"},
		),
		rateLimitChecksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goban_mcp_rate_limit_checks_total",
				Help: "Total number of rate limit checks",
			},
		),

		// Engine metrics
		movesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_engine_moves_total",
				Help: "Moves attempted, by outcome (accepted or the rejection kind)",
			},
			[]string{"outcome"},
		),
		gamesStartedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goban_engine_games_started_total",
				Help: "Total number of games created or imported",
			},
		),
		gamesFinishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_engine_games_finished_total",
				Help: "Total number of finished games by end reason",
			},
			[]string{"reason"},
		),
		engineHealthChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_engine_health_checks_total",
				Help: "Total number of engine self-tests",
			},
			[]string{"status"},
		),
		activeSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goban_engine_active_sessions",
				Help: "Number of open game sessions",
			},
		),
		searchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_ai_searches_total",
				Help: "Total number of AI move searches",
			},
			[]string{"strategy", "source"},
		),
		searchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goban_ai_search_duration_seconds",
				Help:    "Duration of AI move searches in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"strategy"},
		),
		staleSearchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_ai_stale_results_total",
				Help: "Search results discarded because the game moved on",
			},
			[]string{"action"},
		),
		searchIterationsSum: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_ai_search_iterations_total",
				Help: "MCTS iterations run",
			},
			[]string{"strategy"},
		),

		// HTTP metrics
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_mcp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goban_mcp_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Cache metrics
		cacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goban_mcp_cache_hits_total",
				Help: "Total number of search cache hits",
			},
		),
		cacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goban_mcp_cache_misses_total",
				Help: "Total number of search cache misses",
			},
		),
		cacheSize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goban_mcp_cache_size_bytes",
				Help: "Current cache size in bytes",
			},
		),
		cacheItems: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goban_mcp_cache_items",
				Help: "Current number of items in cache",
			},
		),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (p *PrometheusCollector) Handler() http.Handler {
	if p == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// RecordToolCall records a tool call. errorType is ignored for successful
// calls.
func (p *PrometheusCollector) RecordToolCall(tool, status, errorType string, duration time.Duration) {
	if p == nil {
		return
	}
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolDurationSecs.WithLabelValues(tool).Observe(duration.Seconds())

	if status != "success" {
		if errorType == "" {
			errorType = "general"
		}
		p.toolErrorsTotal.WithLabelValues(tool, errorType).Inc()
	}
}

// RecordRateLimit records a rate limit check. scope is empty when the call
// was allowed.
func (p *PrometheusCollector) RecordRateLimit(scope, tool string) {
	if p == nil {
		return
	}
	p.rateLimitChecksTotal.Inc()
	if scope != "" {
		p.rateLimitHitsTotal.WithLabelValues(scope, tool).Inc()
	}
}

// RecordMove counts a move attempt; outcome is "accepted" or a rejection kind.
func (p *PrometheusCollector) RecordMove(outcome string) {
	if p == nil {
		return
	}
	p.movesTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordGameStarted() {
	if p == nil {
		return
	}
	p.gamesStartedTotal.Inc()
}

func (p *PrometheusCollector) RecordGameFinished(reason string) {
	if p == nil {
		return
	}
	p.gamesFinishedTotal.WithLabelValues(reason).Inc()
}

// SetActiveSessions sets the number of open sessions.
func (p *PrometheusCollector) SetActiveSessions(count int) {
	if p == nil {
		return
	}
	p.activeSessions.Set(float64(count))
}

// RecordSearch records a finished AI search. source is "search" or "cache".
func (p *PrometheusCollector) RecordSearch(strategy, source string, iterations int, duration time.Duration) {
	if p == nil {
		return
	}
	p.searchesTotal.WithLabelValues(strategy, source).Inc()
	if source == "cache" {
		return
	}
	p.searchDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if iterations > 0 {
		p.searchIterationsSum.WithLabelValues(strategy).Add(float64(iterations))
	}
}

// RecordStaleSearch records a discarded result; action is "recomputed" or
// "abandoned".
func (p *PrometheusCollector) RecordStaleSearch(action string) {
	if p == nil {
		return
	}
	p.staleSearchesTotal.WithLabelValues(action).Inc()
}

// RecordEngineHealthCheck records a self-test result.
func (p *PrometheusCollector) RecordEngineHealthCheck(success bool) {
	if p == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	p.engineHealthChecks.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (p *PrometheusCollector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if p == nil {
		return
	}
	p.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit.
func (p *PrometheusCollector) RecordCacheHit() {
	if p == nil {
		return
	}
	p.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func (p *PrometheusCollector) RecordCacheMiss() {
	if p == nil {
		return
	}
	p.cacheMissesTotal.Inc()
}

// SetCacheStats sets the current cache statistics.
func (p *PrometheusCollector) SetCacheStats(items int, sizeBytes int64) {
	if p == nil {
		return
	}
	p.cacheItems.Set(float64(items))
	p.cacheSize.Set(float64(sizeBytes))
}
