package api

import (
	"encoding/json"
	"fmt"
)

const (
	maxModelNameLength = 256
	maxStopSequences   = 4
)

// ValidateMessagesRequest checks structural validity of a Messages request.
// It returns the first violation found as an invalid_request_error, or nil.
func ValidateMessagesRequest(req *MessagesRequest) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model: field required")
	}
	if len(req.Model) > maxModelNameLength {
		return NewInvalidRequestError("model: name too long")
	}
	if req.MaxTokens < 1 {
		return NewInvalidRequestError("max_tokens: must be at least 1")
	}
	if len(req.Messages) == 0 {
		return NewInvalidRequestError("messages: at least one message is required")
	}
	for i, m := range req.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return NewInvalidRequestError(fmt.Sprintf(
				"messages.%d.role: must be \"user\" or \"assistant\", got %q", i, m.Role))
		}
		if m.Content == nil {
			return NewInvalidRequestError(fmt.Sprintf("messages.%d.content: field required", i))
		}
	}
	if len(req.StopSequences) > maxStopSequences {
		return NewInvalidRequestError(fmt.Sprintf(
			"stop_sequences: at most %d sequences allowed", maxStopSequences))
	}
	for i, tool := range req.Tools {
		if tool.Name == "" {
			return NewInvalidRequestError(fmt.Sprintf("tools.%d.name: field required", i))
		}
		if len(tool.InputSchema) > 0 && !json.Valid(tool.InputSchema) {
			return NewInvalidRequestError(fmt.Sprintf(
				"tools.%d.input_schema: must be a valid JSON schema object", i))
		}
	}
	return nil
}
