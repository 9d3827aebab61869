package kiro

import (
	"encoding/json"
	"strings"

	"github.com/kirogate/kirogate/pkg/api"
)

const (
	chatTriggerManual = "MANUAL"
	originAIEditor    = "AI_EDITOR"
)

// translateRequest builds the Kiro conversation-state body for an
// Anthropic Messages request. All turns before the last become
// history; the last turn (with any system prompt prepended) becomes
// the current message.
func translateRequest(req *api.MessagesRequest, conversationID, profileArn, modelID string) *generateRequest {
	state := conversationState{
		ChatTriggerType: chatTriggerManual,
		ConversationID:  conversationID,
	}

	messages := req.Messages
	var last api.InputMessage
	if n := len(messages); n > 0 {
		last = messages[n-1]
		messages = messages[:n-1]
	}

	for _, msg := range messages {
		content := msg.FlattenContent()
		switch msg.Role {
		case api.RoleUser:
			state.History = append(state.History, historyEntry{
				UserInputMessage: &userInputMessage{
					Content: content,
					ModelID: modelID,
					Origin:  originAIEditor,
				},
			})
		case api.RoleAssistant:
			state.History = append(state.History, historyEntry{
				AssistantResponseMessage: &assistantResponseMessage{Content: content},
			})
		}
	}

	current := userInputMessage{
		Content: prependSystem(flattenSystem(req.System), last.FlattenContent()),
		ModelID: modelID,
		Origin:  originAIEditor,
	}
	if tools := translateTools(req.Tools); len(tools) > 0 {
		current.Context = &userInputMsgContext{Tools: tools}
	}
	state.CurrentMessage = currentMessage{UserInputMessage: current}

	return &generateRequest{
		ConversationState: state,
		ProfileArn:        profileArn,
	}
}

// flattenSystem collapses the system field, which is a string or a
// list of text parts, into plain text.
func flattenSystem(system any) string {
	switch s := system.(type) {
	case string:
		return s
	case []any:
		var b strings.Builder
		for _, part := range s {
			pm, ok := part.(map[string]any)
			if !ok || pm["type"] != "text" {
				continue
			}
			if t, ok := pm["text"].(string); ok {
				b.WriteString(t)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func prependSystem(system, content string) string {
	if system == "" {
		return content
	}
	if content == "" {
		return system
	}
	return system + "\n\n" + content
}

func translateTools(tools []api.Tool) []toolEntry {
	var entries []toolEntry
	for _, tool := range tools {
		schema := tool.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		entries = append(entries, toolEntry{
			ToolSpecification: toolSpecification{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: inputSchema{JSON: schema},
			},
		})
	}
	return entries
}
