package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/transport"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the adapter knobs. MaxBodySize caps the request body read
// from the client before decoding.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns an adapter configuration with a 10 MiB body cap.
func DefaultConfig() Config {
	return Config{MaxBodySize: 10 << 20}
}

// Adapter exposes the Anthropic Messages surface over HTTP: POST
// /v1/messages for message creation and GET /health for dependency
// checks. It owns request decoding and error serialization; the wrapped
// MessageCreator owns everything past that point.
type Adapter struct {
	creator transport.MessageCreator
	health  []HealthChecker
	mux     *http.ServeMux
	config  Config
}

// NewAdapter wraps creator in the given middleware (outermost first) and
// registers the gateway routes. Every checker in health is consulted on
// GET /health.
func NewAdapter(creator transport.MessageCreator, health []HealthChecker, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}
	a := &Adapter{
		creator: creator,
		health:  health,
		mux:     http.NewServeMux(),
		config:  cfg,
	}
	a.mux.HandleFunc("POST /v1/messages", a.handleCreateMessage)
	a.mux.HandleFunc("GET /health", a.handleHealth)
	return a
}

// Handler returns the adapter's routes wrapped with X-Request-ID
// propagation, ready to mount on an http.Server or httptest.Server.
func (a *Adapter) Handler() http.Handler {
	return propagateRequestID(a.mux)
}

func (a *Adapter) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			msg = fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)
		}
		transport.WriteErrorResponse(w, api.NewInvalidRequestError(msg), status)
		return
	}

	rw := newSSEResponseWriter(w)
	if err := a.creator.CreateMessage(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleHealth answers 200 when every registered dependency passes its
// check, 503 with the first failure otherwise.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	for _, checker := range a.health {
		if err := checker.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeHandlerError routes a CreateMessage failure to the right surface:
// a terminal error event when SSE frames already went out, a JSON error
// envelope otherwise.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr := api.AsAPIError(err)
	if rw.hasStartedStreaming() {
		rw.WriteEvent(context.Background(), api.NewErrorEvent(apiErr))
		return
	}
	transport.WriteAPIError(w, apiErr)
}

// propagateRequestID carries the client's X-Request-ID into the request
// context and mirrors whichever ID ends up in the context (client-sent
// or minted by the RequestID middleware) onto the response.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		next.ServeHTTP(&idHeaderWriter{ResponseWriter: w, req: r}, r)
	})
}

// idHeaderWriter sets the X-Request-ID response header just before the
// first byte of the response, when the middleware chain has had its say.
type idHeaderWriter struct {
	http.ResponseWriter
	req  *http.Request
	sent bool
}

func (w *idHeaderWriter) WriteHeader(statusCode int) {
	w.stampRequestID()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idHeaderWriter) Write(b []byte) (int, error) {
	w.stampRequestID()
	return w.ResponseWriter.Write(b)
}

func (w *idHeaderWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.NewResponseController reach the underlying writer.
func (w *idHeaderWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *idHeaderWriter) stampRequestID() {
	if w.sent {
		return
	}
	w.sent = true
	if id := transport.RequestIDFromContext(w.req.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}
