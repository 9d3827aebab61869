package api

// StreamEventType identifies the type of a streaming event.
type StreamEventType string

// Streaming event names, emitted in this order for a successful response:
// message_start, then content block events, then message_delta, message_stop.
const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventError             StreamEventType = "error"
)

// TerminalEvents are the event types that end a streaming response.
var TerminalEvents = map[StreamEventType]bool{
	EventMessageStop: true,
	EventError:       true,
}

// TextDelta is the delta payload of a content_block_delta event.
type TextDelta struct {
	Type string `json:"type"` // always "text_delta"
	Text string `json:"text"`
}

// MessageDelta is the delta payload of a message_delta event.
type MessageDelta struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// DeltaUsage is the usage payload of a message_delta event.
type DeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent represents a single server-sent event in a streaming response.
// Which fields are populated depends on Type; Delta holds either a TextDelta
// or a MessageDelta. Index uses a pointer so index 0 still serializes.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Message      *Message        `json:"message,omitempty"`
	Index        *int            `json:"index,omitempty"`
	ContentBlock *ContentBlock   `json:"content_block,omitempty"`
	Delta        any             `json:"delta,omitempty"`
	Usage        *DeltaUsage     `json:"usage,omitempty"`
	Error        *APIError       `json:"error,omitempty"`
}

// NewMessageStartEvent wraps an empty message shell in a message_start event.
func NewMessageStartEvent(msg *Message) StreamEvent {
	return StreamEvent{Type: EventMessageStart, Message: msg}
}

// NewContentBlockStartEvent announces a new content block at the given index.
func NewContentBlockStartEvent(index int, block ContentBlock) StreamEvent {
	return StreamEvent{Type: EventContentBlockStart, Index: &index, ContentBlock: &block}
}

// NewTextDeltaEvent carries an incremental text fragment for an open block.
func NewTextDeltaEvent(index int, text string) StreamEvent {
	return StreamEvent{
		Type:  EventContentBlockDelta,
		Index: &index,
		Delta: TextDelta{Type: "text_delta", Text: text},
	}
}

// NewContentBlockStopEvent closes the content block at the given index.
func NewContentBlockStopEvent(index int) StreamEvent {
	return StreamEvent{Type: EventContentBlockStop, Index: &index}
}

// NewMessageDeltaEvent carries the final stop reason and output token count.
func NewMessageDeltaEvent(stopReason string, outputTokens int) StreamEvent {
	return StreamEvent{
		Type:  EventMessageDelta,
		Delta: MessageDelta{StopReason: stopReason},
		Usage: &DeltaUsage{OutputTokens: outputTokens},
	}
}

// NewMessageStopEvent terminates a successful stream.
func NewMessageStopEvent() StreamEvent {
	return StreamEvent{Type: EventMessageStop}
}

// NewErrorEvent terminates a failed stream with a structured error.
func NewErrorEvent(err *APIError) StreamEvent {
	return StreamEvent{Type: EventError, Error: err}
}
