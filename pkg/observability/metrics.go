// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the kirogate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kirogate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kirogate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts requests sent to the Kiro backend.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"model", "status"},
	)

	// UpstreamLatency records Kiro backend latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kirogate_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// TokensTotal counts tokens processed by direction (input/output).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// ToolCallsTotal counts tool_use blocks emitted by source
	// (inline/deferred).
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_tool_calls_total",
			Help: "Tool calls surfaced",
		},
		[]string{"model"},
	)

	// FramingErrorsTotal counts event-stream framing failures by reason
	// class (crc, bounds, header, payload).
	FramingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_framing_errors_total",
			Help: "Event stream framing errors",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kirogate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		TokensTotal,
		ToolCallsTotal,
		FramingErrorsTotal,
		RateLimitRejectedTotal,
	)
}
