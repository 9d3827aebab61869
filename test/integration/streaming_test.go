package integration

import (
	"net/http"
	"testing"

	"github.com/kirogate/kirogate/pkg/api"
)

func TestStreamingTextResponse(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", messagesRequest("Say hello", true))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := parseSSEEvents(t, resp)

	wantTypes := []api.StreamEventType{
		api.EventMessageStart,
		api.EventContentBlockStart,
		api.EventContentBlockDelta,
		api.EventContentBlockDelta,
		api.EventContentBlockDelta,
		api.EventContentBlockDelta,
		api.EventContentBlockStop,
		api.EventMessageDelta,
		api.EventMessageStop,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(wantTypes), eventTypes(events))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}

	if events[0].Message == nil || events[0].Message.Role != api.RoleAssistant {
		t.Error("message_start should carry an assistant message shell")
	}
	if got := collectText(events); got != "Hello from mock!" {
		t.Errorf("concatenated deltas = %q, want \"Hello from mock!\"", got)
	}

	// message_delta carries stop reason and output token count.
	delta := events[len(events)-2]
	if stopReason(delta) != "end_turn" {
		t.Errorf("stop_reason = %q, want end_turn", stopReason(delta))
	}
	if delta.Usage == nil || delta.Usage.OutputTokens != 4 {
		t.Errorf("message_delta usage = %+v, want output_tokens 4", delta.Usage)
	}
}

func TestStreamingToolUse(t *testing.T) {
	body := messagesRequest("What is the weather in San Francisco?", true)
	body["tools"] = []map[string]any{
		{
			"name":         "get_weather",
			"input_schema": map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	events := parseSSEEvents(t, resp)
	if len(events) == 0 {
		t.Fatal("no events received")
	}

	// The tool call arrives fragmented and is only complete at end of
	// stream, so its block pair is emitted after the text block has
	// closed but before the stream itself closes.
	var toolStart *api.StreamEvent
	toolStartAt, textStopAt := -1, -1
	for i := range events {
		ev := &events[i]
		if ev.Type == api.EventContentBlockStart && ev.ContentBlock != nil &&
			ev.ContentBlock.Type == api.ContentBlockTypeToolUse {
			toolStart = ev
			toolStartAt = i
		}
		if ev.Type == api.EventContentBlockStop && ev.Index != nil && *ev.Index == 0 {
			textStopAt = i
		}
	}
	if textStopAt == -1 || toolStartAt < textStopAt {
		t.Errorf("text block_stop at %d, tool start at %d: text must close first", textStopAt, toolStartAt)
	}
	if toolStart == nil {
		t.Fatalf("no tool_use content_block_start in %v", eventTypes(events))
	}
	if toolStart.Index == nil || *toolStart.Index != 1 {
		t.Errorf("tool block index = %v, want 1 (after the text block)", toolStart.Index)
	}
	if toolStart.ContentBlock.Name != "get_weather" {
		t.Errorf("tool name = %q, want \"get_weather\"", toolStart.ContentBlock.Name)
	}
	if toolStart.ContentBlock.ID != "tooluse_mock_1" {
		t.Errorf("tool id = %q, want the upstream-assigned id", toolStart.ContentBlock.ID)
	}
	if toolStart.ContentBlock.Input["location"] != "San Francisco" {
		t.Errorf("tool input = %v, want reassembled arguments", toolStart.ContentBlock.Input)
	}

	last := events[len(events)-1]
	if last.Type != api.EventMessageStop {
		t.Errorf("last event = %q, want message_stop", last.Type)
	}
	for _, ev := range events {
		if ev.Type == api.EventMessageDelta && stopReason(ev) != "tool_use" {
			t.Errorf("stop_reason = %q, want tool_use", stopReason(ev))
		}
	}
}

func TestStreamingInlineToolCall(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", messagesRequest("inline tool please", true))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
	}

	events := parseSSEEvents(t, resp)

	wantTypes := []api.StreamEventType{
		api.EventMessageStart,
		api.EventContentBlockStart,
		api.EventContentBlockStop,
		api.EventMessageDelta,
		api.EventMessageStop,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %v", len(events), len(wantTypes), eventTypes(events))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}

	// The marker text never surfaces as prose: the tool block sits at
	// index 0.
	toolStart := events[1]
	if toolStart.Index == nil || *toolStart.Index != 0 {
		t.Errorf("tool block index = %v, want 0", toolStart.Index)
	}
	if toolStart.ContentBlock == nil || toolStart.ContentBlock.Type != api.ContentBlockTypeToolUse {
		t.Fatalf("content block = %+v, want tool_use", toolStart.ContentBlock)
	}
	if toolStart.ContentBlock.Input["location"] != "Berlin" {
		t.Errorf("tool input = %v, want Berlin", toolStart.ContentBlock.Input)
	}
}

// --- Helpers ---

func eventTypes(events []api.StreamEvent) []api.StreamEventType {
	types := make([]api.StreamEventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// collectText concatenates the text of all content_block_delta events.
func collectText(events []api.StreamEvent) string {
	var out string
	for _, ev := range events {
		if ev.Type != api.EventContentBlockDelta {
			continue
		}
		if m, ok := ev.Delta.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
	}
	return out
}

// stopReason extracts the stop reason from a message_delta event.
func stopReason(ev api.StreamEvent) string {
	if m, ok := ev.Delta.(map[string]any); ok {
		if s, ok := m["stop_reason"].(string); ok {
			return s
		}
	}
	return ""
}
