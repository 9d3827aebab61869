package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/transport"
)

type writerState int

const (
	writerIdle      writerState = iota // nothing written
	writerStreaming                    // SSE headers out, events flowing
	writerCompleted                    // terminal event or JSON body written
)

// sseResponseWriter adapts http.ResponseWriter to transport's
// ResponseWriter: SSE for streaming responses, one JSON document for
// non-streaming ones. The two modes are mutually exclusive and the
// writer refuses anything after a terminal event.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

func newSSEResponseWriter(w http.ResponseWriter) *sseResponseWriter {
	return &sseResponseWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteEvent sends one "event: {type}\ndata: {json}\n\n" record and
// flushes it so clients see events as they happen. The Anthropic stream
// carries no end-of-stream sentinel; message_stop or error simply ends
// it.
func (s *sseResponseWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("write after terminal event")
	}
	if s.state == writerIdle {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event: %w", err)
	}

	if api.TerminalEvents[event.Type] {
		s.state = writerCompleted
	}
	return nil
}

// WriteMessage sends the collected message as one JSON document.
func (s *sseResponseWriter) WriteMessage(ctx context.Context, msg *api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case writerStreaming:
		return errors.New("write message after streaming started")
	case writerCompleted:
		return errors.New("write message after completion")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(msg); err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	return nil
}

// Flush pushes buffered data to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming reports whether SSE output has begun; the adapter
// uses it to decide between a JSON error envelope and an in-stream
// error event.
func (s *sseResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == writerStreaming {
		return true
	}
	return s.state == writerCompleted && s.w.Header().Get("Content-Type") == "text/event-stream"
}
