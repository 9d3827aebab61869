package kiro

import (
	"log/slog"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/provider"
)

// StreamTranslator turns decoded records into Anthropic stream events,
// maintaining the protocol state machine: message_start before any
// content, a single text block at index 0, tool-use blocks as atomic
// start/stop pairs at the following indices, and exactly one terminal
// event.
//
// StreamTranslator is not safe for concurrent use.
type StreamTranslator struct {
	messageID string
	model     string
	logger    *slog.Logger

	messageStarted bool
	textIndex      int
	nextIndex      int
	toolCount      int

	inputTokens  int
	outputTokens int
	finished     bool
}

// NewStreamTranslator creates a translator for one message. A nil
// logger falls back to slog.Default.
func NewStreamTranslator(messageID, model string, logger *slog.Logger) *StreamTranslator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamTranslator{messageID: messageID, model: model, logger: logger, textIndex: -1}
}

// Translate converts one record into zero or more stream events.
// Metadata records update token accounting and emit nothing; content
// records open the message on first sight, then either append text
// deltas or expand into tool-use block pairs.
func (t *StreamTranslator) Translate(rec provider.Record) []api.StreamEvent {
	switch rec.Type {
	case provider.RecordMetadata:
		if rec.Usage != nil {
			if rec.Usage.InputTokens > 0 {
				t.inputTokens = rec.Usage.InputTokens
			}
			if rec.Usage.OutputTokens > 0 {
				t.outputTokens = rec.Usage.OutputTokens
			}
		}
		return nil

	case provider.RecordToolCall:
		events := t.startMessage(nil)
		if rec.ToolCall != nil {
			events = t.appendToolUse(events, rec.ToolCall)
		}
		return events

	case provider.RecordContent:
		events := t.startMessage(nil)
		calls := ParseBracketToolCalls(rec.Text, t.logger)
		if len(calls) > 0 {
			// Text containing markers is tooling, not prose.
			for i := range calls {
				events = t.appendToolUse(events, &calls[i])
			}
			return events
		}
		if rec.Text == "" {
			return events
		}
		if t.textIndex < 0 {
			t.textIndex = t.nextIndex
			t.nextIndex++
			events = append(events, api.NewContentBlockStartEvent(t.textIndex, api.NewTextBlock("")))
		}
		return append(events, api.NewTextDeltaEvent(t.textIndex, rec.Text))
	}
	return nil
}

// Finish closes the stream: the open text block is stopped first, then
// deferred tool calls from the decoder's Drain are emitted at the
// following indices, then message_delta with the stop reason and output
// token count, and message_stop. Finish is idempotent in the sense that
// a finished translator emits nothing further.
func (t *StreamTranslator) Finish(deferred []provider.Record) []api.StreamEvent {
	if t.finished {
		return nil
	}
	t.finished = true

	events := t.startMessage(nil)
	if t.textIndex >= 0 {
		events = append(events, api.NewContentBlockStopEvent(t.textIndex))
	}
	for _, rec := range deferred {
		if rec.Type == provider.RecordToolCall && rec.ToolCall != nil {
			events = t.appendToolUse(events, rec.ToolCall)
		}
	}
	events = append(events, api.NewMessageDeltaEvent(t.StopReason(), t.outputTokens))
	return append(events, api.NewMessageStopEvent())
}

// Fail produces the terminal error event for err. No further events
// may be emitted after it.
func (t *StreamTranslator) Fail(err error) api.StreamEvent {
	t.finished = true
	return api.NewErrorEvent(translateError(err))
}

// StopReason reports the stop reason the stream ends with: tool_use
// when any tool invocation was emitted, end_turn otherwise.
func (t *StreamTranslator) StopReason() string {
	if t.toolCount > 0 {
		return api.StopReasonToolUse
	}
	return api.StopReasonEndTurn
}

// Usage reports the token totals observed in metadata records.
func (t *StreamTranslator) Usage() api.Usage {
	return api.Usage{InputTokens: t.inputTokens, OutputTokens: t.outputTokens}
}

func (t *StreamTranslator) startMessage(events []api.StreamEvent) []api.StreamEvent {
	if t.messageStarted {
		return events
	}
	t.messageStarted = true
	return append(events, api.NewMessageStartEvent(api.NewMessage(t.messageID, t.model)))
}

// appendToolUse emits the atomic start/stop pair for one tool call at
// the next free block index. Indices only grow, so a tool block never
// lands on an index the text block already took.
func (t *StreamTranslator) appendToolUse(events []api.StreamEvent, call *provider.ToolCall) []api.StreamEvent {
	index := t.nextIndex
	t.nextIndex++
	t.toolCount++

	id := call.ID
	if id == "" {
		id = api.NewToolUseID()
	}
	block := api.NewToolUseBlock(id, call.Name, call.Arguments)
	events = append(events, api.NewContentBlockStartEvent(index, block))
	return append(events, api.NewContentBlockStopEvent(index))
}
