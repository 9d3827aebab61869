package api

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessagesRequest is the body of a POST /v1/messages call.
type MessagesRequest struct {
	Model         string         `json:"model"`
	MaxTokens     int            `json:"max_tokens"`
	Messages      []InputMessage `json:"messages"`
	System        any            `json:"system,omitempty"` // string or []ContentPart
	Tools         []Tool         `json:"tools,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	TopK          *int           `json:"top_k,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// InputMessage is a single conversation turn in a request. Content is either
// a plain string or a list of content blocks; FlattenContent collapses both
// forms into text.
type InputMessage struct {
	Role    MessageRole `json:"role"`
	Content any         `json:"content"`
}

// FlattenContent returns the textual content of the message. Structured
// content lists are concatenated; non-text blocks (images, tool results)
// contribute their textual parts only.
func (m *InputMessage) FlattenContent() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []any:
		var out string
		for _, part := range c {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			switch pm["type"] {
			case "text":
				if t, ok := pm["text"].(string); ok {
					out += t
				}
			case "tool_result":
				out += flattenToolResult(pm["content"])
			}
		}
		return out
	default:
		return ""
	}
}

func flattenToolResult(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var out string
		for _, part := range c {
			if pm, ok := part.(map[string]any); ok && pm["type"] == "text" {
				if t, ok := pm["text"].(string); ok {
					out += t
				}
			}
		}
		return out
	default:
		return ""
	}
}

// Tool is a client-supplied tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// Content block type discriminators.
const (
	ContentBlockTypeText    = "text"
	ContentBlockTypeToolUse = "tool_use"
)

// Stop reasons.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

// ContentBlock is a tagged union: a text block ({"type":"text","text":...})
// or a tool-use block ({"type":"tool_use","id":...,"name":...,"input":...}).
type ContentBlock struct {
	Type  string         `json:"-"`
	Text  string         `json:"-"`
	ID    string         `json:"-"`
	Name  string         `json:"-"`
	Input map[string]any `json:"-"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeText, Text: text}
}

// NewToolUseBlock creates a tool-use content block. A nil input serializes
// as an empty object, never null.
func NewToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeToolUse, ID: id, Name: name, Input: input}
}

// MarshalJSON serializes the block according to its type. Text blocks always
// carry a "text" field (possibly empty); tool-use blocks always carry an
// "input" object (possibly empty).
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case ContentBlockTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: b.Type, Text: b.Text})
	case ContentBlockTypeToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(struct {
			Type  string         `json:"type"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		}{Type: b.Type, ID: b.ID, Name: b.Name, Input: input})
	default:
		return nil, fmt.Errorf("unknown content block type %q", b.Type)
	}
}

// UnmarshalJSON deserializes a tagged content block.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var w struct {
		Type  string         `json:"type"`
		Text  string         `json:"text"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Type = w.Type
	b.Text = w.Text
	b.ID = w.ID
	b.Name = w.Name
	b.Input = w.Input
	return nil
}

// Usage holds token accounting for one message.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Message is the complete response object returned by non-streaming calls
// and embedded in the message_start streaming event.
type Message struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"` // always "message"
	Role         MessageRole    `json:"role"` // always "assistant"
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// NewMessage creates an empty assistant message shell for the given id and
// model, as embedded in message_start. Content is an empty array, never null.
func NewMessage(id, model string) *Message {
	return &Message{
		ID:      id,
		Type:    "message",
		Role:    RoleAssistant,
		Content: []ContentBlock{},
		Model:   model,
	}
}

// MarshalJSON ensures content is always an array, never null.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	a := alias(m)
	if a.Content == nil {
		a.Content = []ContentBlock{}
	}
	return json.Marshal(a)
}
