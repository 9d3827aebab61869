package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	if m.Gauge != nil {
		return m.Gauge.GetValue()
	}
	t.Fatalf("metric is neither counter nor gauge")
	return 0
}

func histogramCount(t *testing.T, h interface{ Write(*dto.Metric) error }) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.Histogram.GetSampleCount()
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	before := counterValue(t, RequestsTotal.WithLabelValues(http.MethodPost, "2xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	after := counterValue(t, RequestsTotal.WithLabelValues(http.MethodPost, "2xx"))
	if after != before+1 {
		t.Errorf("requests_total = %v, want %v", after, before+1)
	}
}

func TestMetricsMiddlewareStatusClass(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  string
	}{
		{"ok", http.StatusOK, "2xx"},
		{"bad request", http.StatusBadRequest, "4xx"},
		{"rate limited", http.StatusTooManyRequests, "4xx"},
		{"upstream error", http.StatusBadGateway, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := counterValue(t, RequestsTotal.WithLabelValues(http.MethodGet, tt.class))

			handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

			after := counterValue(t, RequestsTotal.WithLabelValues(http.MethodGet, tt.class))
			if after != before+1 {
				t.Errorf("requests_total{%s} = %v, want %v", tt.class, after, before+1)
			}
		})
	}
}

func TestMetricsMiddlewareObservesDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration.WithLabelValues(http.MethodPost).(prometheus.Metric))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/messages", nil))

	after := histogramCount(t, RequestDuration.WithLabelValues(http.MethodPost).(prometheus.Metric))
	if after != before+1 {
		t.Errorf("request_duration sample count = %d, want %d", after, before+1)
	}
}

func TestMetricsMiddlewareStreamingGauge(t *testing.T) {
	var during float64

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		during = counterValue(t, StreamingConnections)
	}))

	baseline := counterValue(t, StreamingConnections)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/messages", nil))

	if during != baseline+1 {
		t.Errorf("streaming gauge during request = %v, want %v", during, baseline+1)
	}
	if got := counterValue(t, StreamingConnections); got != baseline {
		t.Errorf("streaming gauge after request = %v, want %v", got, baseline)
	}
}

func TestMetricsMiddlewareNonStreamingLeavesGauge(t *testing.T) {
	baseline := counterValue(t, StreamingConnections)

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/messages", nil))

	if got := counterValue(t, StreamingConnections); got != baseline {
		t.Errorf("streaming gauge = %v, want %v", got, baseline)
	}
}

func TestUpstreamMetricsLabels(t *testing.T) {
	before := counterValue(t, TokensTotal.WithLabelValues("claude-sonnet-4", "input"))
	TokensTotal.WithLabelValues("claude-sonnet-4", "input").Add(42)
	after := counterValue(t, TokensTotal.WithLabelValues("claude-sonnet-4", "input"))
	if after != before+42 {
		t.Errorf("tokens_total = %v, want %v", after, before+42)
	}

	fb := counterValue(t, FramingErrorsTotal.WithLabelValues("prelude_crc"))
	FramingErrorsTotal.WithLabelValues("prelude_crc").Inc()
	if got := counterValue(t, FramingErrorsTotal.WithLabelValues("prelude_crc")); got != fb+1 {
		t.Errorf("framing_errors_total = %v, want %v", got, fb+1)
	}
}
