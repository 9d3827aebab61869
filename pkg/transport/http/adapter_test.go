package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/transport"
)

func newTestAdapter(creator transport.MessageCreator, health ...HealthChecker) *Adapter {
	return NewAdapter(creator, health, DefaultConfig())
}

func postMessages(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"model":"m","max_tokens":16,"messages":[{"role":"user","content":"hi"}]}`

func TestAdapterNonStreaming(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
		msg := api.NewMessage("msg_ok", req.Model)
		stop := api.StopReasonEndTurn
		msg.StopReason = &stop
		msg.Content = []api.ContentBlock{api.NewTextBlock("hello")}
		return w.WriteMessage(ctx, msg)
	})

	rec := postMessages(t, newTestAdapter(creator).Handler(), validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var msg api.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID != "msg_ok" || msg.Model != "m" {
		t.Errorf("message = %+v", msg)
	}
}

func TestAdapterStreaming(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
		events := []api.StreamEvent{
			api.NewMessageStartEvent(api.NewMessage("msg_s", req.Model)),
			api.NewContentBlockStartEvent(0, api.NewTextBlock("")),
			api.NewTextDeltaEvent(0, "hi"),
			api.NewContentBlockStopEvent(0),
			api.NewMessageDeltaEvent(api.StopReasonEndTurn, 1),
			api.NewMessageStopEvent(),
		}
		for _, ev := range events {
			if err := w.WriteEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})

	body := `{"model":"m","max_tokens":16,"stream":true,"messages":[{"role":"user","content":"hi"}]}`
	rec := postMessages(t, newTestAdapter(creator).Handler(), body)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, body = %s", ct, rec.Body.String())
	}
	out := rec.Body.String()
	if !strings.Contains(out, "event: message_start\n") || !strings.Contains(out, "event: message_stop\n") {
		t.Errorf("stream output = %s", out)
	}
}

func TestAdapterRejectsBadRequests(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(context.Context, *api.MessagesRequest, transport.ResponseWriter) error {
		t.Error("handler called for a bad request")
		return nil
	})
	handler := newTestAdapter(creator).Handler()

	t.Run("invalid json", func(t *testing.T) {
		rec := postMessages(t, handler, "{nope")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
		var body api.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Error.Type != api.ErrorTypeInvalidRequest {
			t.Errorf("error type = %q", body.Error.Type)
		}
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validBody))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		small := NewAdapter(creator, nil, Config{MaxBodySize: 16})
		rec := postMessages(t, small.Handler(), validBody)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestAdapterHandlerErrorBeforeStream(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(context.Context, *api.MessagesRequest, transport.ResponseWriter) error {
		return api.NewRateLimitError("too fast")
	})

	rec := postMessages(t, newTestAdapter(creator).Handler(), validBody)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != api.ErrorTypeRateLimit {
		t.Errorf("error type = %q", body.Error.Type)
	}
}

func TestAdapterHandlerErrorMidStream(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
		if err := w.WriteEvent(ctx, api.NewMessageStartEvent(api.NewMessage("msg_e", req.Model))); err != nil {
			return err
		}
		return api.NewAPIErrorf("upstream died")
	})

	rec := postMessages(t, newTestAdapter(creator).Handler(), validBody)
	out := rec.Body.String()
	if !strings.Contains(out, "event: error\n") || !strings.Contains(out, "upstream died") {
		t.Errorf("stream output = %s", out)
	}
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestAdapterHealth(t *testing.T) {
	ok := healthFunc(func(context.Context) error { return nil })
	bad := healthFunc(func(context.Context) error { return errors.New("db down") })

	t.Run("healthy", func(t *testing.T) {
		adapter := newTestAdapter(nil, ok)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		adapter.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		adapter := newTestAdapter(nil, ok, bad)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		adapter.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "db down") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})
}

func TestAdapterPropagatesRequestID(t *testing.T) {
	creator := transport.MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w transport.ResponseWriter) error {
		return w.WriteMessage(ctx, api.NewMessage("msg_r", req.Model))
	})
	handler := NewAdapter(creator, nil, DefaultConfig(), transport.RequestID()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-7" {
		t.Errorf("X-Request-ID = %q, want req-7", got)
	}
}
