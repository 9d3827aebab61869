package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/kirogate/kirogate/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/messages", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var envelope api.ErrorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Type != "error" {
		t.Errorf("envelope type = %q, want \"error\"", envelope.Type)
	}
	if envelope.Error == nil || envelope.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error = %+v, want invalid_request_error", envelope.Error)
	}
}

func TestMissingMaxTokens(t *testing.T) {
	body := messagesRequest("hello", false)
	delete(body, "max_tokens")

	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var envelope api.ErrorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Error == nil || !strings.Contains(envelope.Error.Message, "max_tokens") {
		t.Errorf("error = %+v, want a max_tokens validation message", envelope.Error)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/messages", "text/plain",
		bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestUpstreamHTTPError(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", messagesRequest("trigger overload", false))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	var envelope api.ErrorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Error == nil || envelope.Error.Type != api.ErrorTypeOverloaded {
		t.Errorf("error = %+v, want overloaded_error", envelope.Error)
	}
}

func TestUpstreamExceptionNonStreaming(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", messagesRequest("trigger error", false))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}

	var envelope api.ErrorResponse
	decodeJSON(t, resp, &envelope)
	if envelope.Error == nil {
		t.Fatal("missing error payload")
	}
	if !strings.Contains(envelope.Error.Message, "AccessDeniedException") {
		t.Errorf("error message = %q, want the upstream exception code", envelope.Error.Message)
	}
}

func TestUpstreamExceptionMidStream(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/v1/messages", messagesRequest("trigger error", true))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (stream already started): %s", resp.StatusCode, readBody(t, resp))
	}

	events := parseSSEEvents(t, resp)
	if len(events) == 0 {
		t.Fatal("no events received")
	}

	last := events[len(events)-1]
	if last.Type != api.EventError {
		t.Fatalf("last event = %q, want error: %v", last.Type, eventTypes(events))
	}
	if last.Error == nil || !strings.Contains(last.Error.Message, "bearer token") {
		t.Errorf("error event = %+v, want the upstream message", last.Error)
	}

	// The stream delivered the content that arrived before the fault.
	if events[0].Type != api.EventMessageStart {
		t.Errorf("first event = %q, want message_start", events[0].Type)
	}
	if got := collectText(events); got != "Starting up" {
		t.Errorf("text before failure = %q, want \"Starting up\"", got)
	}
}
