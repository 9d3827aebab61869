package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - kirogate_requests_total (counter): incremented per request with method and status class labels
//   - kirogate_request_duration_seconds (histogram): request duration with method label
//   - kirogate_streaming_connections_active (gauge): incremented while an SSE streaming response is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		// Streaming is decided by the handler, not the Accept header:
		// the same endpoint serves both modes. Track the gauge from the
		// response Content-Type via the first write.
		sw.onStream = func() {
			StreamingConnections.Inc()
		}
		defer func() {
			if sw.streamed {
				StreamingConnections.Dec()
			}
		}()

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code and
// detect SSE streaming from the response headers.
type statusWriter struct {
	http.ResponseWriter
	status   int
	written  bool
	streamed bool
	onStream func()
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		w.detectStream()
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
		w.detectStream()
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// This is essential for SSE streaming support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) detectStream() {
	if w.streamed {
		return
	}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.streamed = true
		if w.onStream != nil {
			w.onStream()
		}
	}
}
