package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/provider"
	"github.com/kirogate/kirogate/pkg/storage"
	"github.com/kirogate/kirogate/pkg/storage/memory"
)

type fakeProvider struct {
	msg       *api.Message
	err       error
	events    []provider.StreamResult
	streamErr error

	lastReq *api.MessagesRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req *api.MessagesRequest) (*api.Message, error) {
	f.lastReq = req
	return f.msg, f.err
}

func (f *fakeProvider) Stream(ctx context.Context, req *api.MessagesRequest) (<-chan provider.StreamResult, error) {
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan provider.StreamResult, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) Close() error { return nil }

type captureWriter struct {
	events   []api.StreamEvent
	msg      *api.Message
	writeErr error
}

func (w *captureWriter) WriteEvent(ctx context.Context, ev api.StreamEvent) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.events = append(w.events, ev)
	return nil
}

func (w *captureWriter) WriteMessage(ctx context.Context, msg *api.Message) error {
	w.msg = msg
	return nil
}

func (w *captureWriter) Flush() error { return nil }

func validRequest() *api.MessagesRequest {
	return &api.MessagesRequest{
		Model:     "claude-sonnet-4",
		MaxTokens: 1024,
		Messages: []api.InputMessage{
			{Role: api.RoleUser, Content: "Hello"},
		},
	}
}

func completedMessage() *api.Message {
	stop := "end_turn"
	msg := api.NewMessage("msg_test123", "claude-sonnet-4")
	msg.Content = []api.ContentBlock{
		api.NewTextBlock("Hi there"),
		api.NewToolUseBlock("toolu_1", "get_weather", map[string]any{"city": "Berlin"}),
	}
	msg.StopReason = &stop
	msg.Usage = api.Usage{InputTokens: 11, OutputTokens: 7}
	return msg
}

func TestCreateMessageNonStreaming(t *testing.T) {
	prov := &fakeProvider{msg: completedMessage()}
	store := memory.New(10)
	eng, err := New(prov, store, Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	w := &captureWriter{}
	if err := eng.CreateMessage(context.Background(), validRequest(), w); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}

	if w.msg == nil {
		t.Fatal("expected a message to be written")
	}
	if w.msg.ID != "msg_test123" {
		t.Errorf("message ID = %q, want \"msg_test123\"", w.msg.ID)
	}
	if len(w.events) != 0 {
		t.Errorf("wrote %d events, want 0 for non-streaming", len(w.events))
	}

	recs, err := store.ListUsage(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsage() error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Model != "claude-sonnet-4" {
		t.Errorf("record model = %q, want \"claude-sonnet-4\"", rec.Model)
	}
	if rec.Streamed {
		t.Error("record streamed = true, want false")
	}
	if rec.InputTokens != 11 || rec.OutputTokens != 7 {
		t.Errorf("record tokens = %d/%d, want 11/7", rec.InputTokens, rec.OutputTokens)
	}
	if rec.ToolCalls != 1 {
		t.Errorf("record tool calls = %d, want 1", rec.ToolCalls)
	}
	if rec.StopReason != "end_turn" {
		t.Errorf("record stop reason = %q, want \"end_turn\"", rec.StopReason)
	}
}

func TestCreateMessageStreaming(t *testing.T) {
	msg := api.NewMessage("msg_stream1", "claude-sonnet-4")
	msg.Usage = api.Usage{InputTokens: 5}

	prov := &fakeProvider{events: []provider.StreamResult{
		{Event: api.NewMessageStartEvent(msg)},
		{Event: api.NewContentBlockStartEvent(0, api.NewTextBlock(""))},
		{Event: api.NewTextDeltaEvent(0, "Hello")},
		{Event: api.NewContentBlockStopEvent(0)},
		{Event: api.NewContentBlockStartEvent(1, api.NewToolUseBlock("toolu_1", "search", nil))},
		{Event: api.NewContentBlockStopEvent(1)},
		{Event: api.NewMessageDeltaEvent("tool_use", 9)},
		{Event: api.NewMessageStopEvent()},
	}}
	store := memory.New(10)
	eng, err := New(prov, store, Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	req := validRequest()
	req.Stream = true
	w := &captureWriter{}
	if err := eng.CreateMessage(context.Background(), req, w); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}

	if len(w.events) != 8 {
		t.Fatalf("forwarded %d events, want 8", len(w.events))
	}
	if w.events[0].Type != api.EventMessageStart {
		t.Errorf("first event = %q, want message_start", w.events[0].Type)
	}
	if w.events[7].Type != api.EventMessageStop {
		t.Errorf("last event = %q, want message_stop", w.events[7].Type)
	}

	recs, err := store.ListUsage(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsage() error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if !rec.Streamed {
		t.Error("record streamed = false, want true")
	}
	if rec.InputTokens != 5 || rec.OutputTokens != 9 {
		t.Errorf("record tokens = %d/%d, want 5/9", rec.InputTokens, rec.OutputTokens)
	}
	if rec.ToolCalls != 1 {
		t.Errorf("record tool calls = %d, want 1", rec.ToolCalls)
	}
	if rec.StopReason != "tool_use" {
		t.Errorf("record stop reason = %q, want \"tool_use\"", rec.StopReason)
	}
}

func TestCreateMessageStreamFailure(t *testing.T) {
	upstream := errors.New("backend closed the connection")
	prov := &fakeProvider{events: []provider.StreamResult{
		{Event: api.NewMessageStartEvent(api.NewMessage("msg_f", "claude-sonnet-4"))},
		{Event: api.NewErrorEvent(api.NewOverloadedError("backend closed the connection")), Err: upstream},
	}}
	store := memory.New(10)
	eng, _ := New(prov, store, Config{})

	req := validRequest()
	req.Stream = true
	w := &captureWriter{}
	// The error event is delivered to the client, so the handler call
	// itself succeeds.
	if err := eng.CreateMessage(context.Background(), req, w); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}

	if len(w.events) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(w.events))
	}
	if w.events[1].Type != api.EventError {
		t.Errorf("last event = %q, want error", w.events[1].Type)
	}

	recs, _ := store.ListUsage(context.Background(), storage.ListOptions{})
	if len(recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(recs))
	}
	if recs[0].StopReason != "error" {
		t.Errorf("record stop reason = %q, want \"error\"", recs[0].StopReason)
	}
}

func TestCreateMessageDefaultModel(t *testing.T) {
	prov := &fakeProvider{msg: completedMessage()}
	eng, _ := New(prov, nil, Config{DefaultModel: "claude-haiku-3"})

	req := validRequest()
	req.Model = ""
	w := &captureWriter{}
	if err := eng.CreateMessage(context.Background(), req, w); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}
	if prov.lastReq.Model != "claude-haiku-3" {
		t.Errorf("provider saw model %q, want default \"claude-haiku-3\"", prov.lastReq.Model)
	}
}

func TestCreateMessageMissingModel(t *testing.T) {
	prov := &fakeProvider{msg: completedMessage()}
	eng, _ := New(prov, nil, Config{})

	req := validRequest()
	req.Model = ""
	err := eng.CreateMessage(context.Background(), req, &captureWriter{})
	if err == nil {
		t.Fatal("expected error for missing model with no default")
	}
	if apiErr := api.AsAPIError(err); apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %v, want invalid_request_error", err)
	}
	if prov.lastReq != nil {
		t.Error("provider should not be called for invalid requests")
	}
}

func TestCreateMessageValidation(t *testing.T) {
	prov := &fakeProvider{msg: completedMessage()}
	eng, _ := New(prov, nil, Config{})

	req := validRequest()
	req.Messages = nil
	err := eng.CreateMessage(context.Background(), req, &captureWriter{})
	if err == nil {
		t.Fatal("expected validation error for empty messages")
	}
	if prov.lastReq != nil {
		t.Error("provider should not be called for invalid requests")
	}
}

func TestCreateMessageUpstreamError(t *testing.T) {
	upstream := api.NewOverloadedError("upstream unavailable")
	prov := &fakeProvider{err: upstream}
	eng, _ := New(prov, nil, Config{})

	err := eng.CreateMessage(context.Background(), validRequest(), &captureWriter{})
	if !errors.Is(err, upstream) {
		t.Errorf("error = %v, want the upstream error", err)
	}
}

func TestCreateMessageWriteFailure(t *testing.T) {
	prov := &fakeProvider{events: []provider.StreamResult{
		{Event: api.NewMessageStartEvent(api.NewMessage("msg_w", "claude-sonnet-4"))},
		{Event: api.NewMessageStopEvent()},
	}}
	eng, _ := New(prov, nil, Config{})

	req := validRequest()
	req.Stream = true
	w := &captureWriter{writeErr: errors.New("client disconnected")}
	err := eng.CreateMessage(context.Background(), req, w)
	if err == nil {
		t.Fatal("expected error when the writer fails")
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(nil, nil, Config{}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
