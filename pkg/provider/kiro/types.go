package kiro

import "encoding/json"

// Wire payloads carried inside event-stream frames. Field names follow
// the upstream JSON exactly.

type assistantResponseEvent struct {
	Content string `json:"content"`
}

type toolUseEvent struct {
	ToolUseID string `json:"toolUseId"`
	Name      string `json:"name"`
	Input     string `json:"input"`
	Stop      bool   `json:"stop"`
}

type metadataEvent struct {
	TokenUsage *tokenUsage `json:"tokenUsage,omitempty"`

	// Some upstream variants report counts at the top level.
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

type tokenUsage struct {
	UncachedInputTokens  int `json:"uncachedInputTokens"`
	CacheReadInputTokens int `json:"cacheReadInputTokens"`
	InputTokens          int `json:"inputTokens"`
	OutputTokens         int `json:"outputTokens"`
	TotalTokens          int `json:"totalTokens"`
}

type exceptionPayload struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// Request body for generateAssistantResponse.

type generateRequest struct {
	ConversationState conversationState `json:"conversationState"`
	ProfileArn        string            `json:"profileArn,omitempty"`
}

type conversationState struct {
	ChatTriggerType string         `json:"chatTriggerType"`
	ConversationID  string         `json:"conversationId"`
	CurrentMessage  currentMessage `json:"currentMessage"`
	History         []historyEntry `json:"history,omitempty"`
}

type currentMessage struct {
	UserInputMessage userInputMessage `json:"userInputMessage"`
}

type userInputMessage struct {
	Content string               `json:"content"`
	ModelID string               `json:"modelId"`
	Origin  string               `json:"origin"`
	Context *userInputMsgContext `json:"userInputMessageContext,omitempty"`
}

type userInputMsgContext struct {
	Tools []toolEntry `json:"tools,omitempty"`
}

type toolEntry struct {
	ToolSpecification toolSpecification `json:"toolSpecification"`
}

type toolSpecification struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	JSON json.RawMessage `json:"json"`
}

type historyEntry struct {
	UserInputMessage         *userInputMessage         `json:"userInputMessage,omitempty"`
	AssistantResponseMessage *assistantResponseMessage `json:"assistantResponseMessage,omitempty"`
}

type assistantResponseMessage struct {
	Content string `json:"content"`
}
