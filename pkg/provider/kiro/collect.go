package kiro

import (
	"log/slog"
	"strings"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/provider"
)

// Collector accumulates decoded records into a complete Message for
// the non-streaming response mode. Text fragments are concatenated
// into a single text block that is placed before any tool-use blocks,
// regardless of arrival order.
//
// Collector is not safe for concurrent use.
type Collector struct {
	messageID string
	model     string
	logger    *slog.Logger

	text       strings.Builder
	toolBlocks []api.ContentBlock

	inputTokens  int
	outputTokens int
}

// NewCollector creates a collector for one message. A nil logger falls
// back to slog.Default.
func NewCollector(messageID, model string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{messageID: messageID, model: model, logger: logger}
}

// Add folds one record into the accumulated message.
func (c *Collector) Add(rec provider.Record) {
	switch rec.Type {
	case provider.RecordMetadata:
		if rec.Usage != nil {
			if rec.Usage.InputTokens > 0 {
				c.inputTokens = rec.Usage.InputTokens
			}
			if rec.Usage.OutputTokens > 0 {
				c.outputTokens = rec.Usage.OutputTokens
			}
		}

	case provider.RecordToolCall:
		if rec.ToolCall != nil {
			c.appendToolUse(rec.ToolCall)
		}

	case provider.RecordContent:
		calls := ParseBracketToolCalls(rec.Text, c.logger)
		if len(calls) > 0 {
			for i := range calls {
				c.appendToolUse(&calls[i])
			}
			return
		}
		c.text.WriteString(rec.Text)
	}
}

// Finish assembles the final message: deferred tool calls appended
// after those already collected, the text block (if any text arrived)
// inserted at the front, stop reason derived from tool presence.
func (c *Collector) Finish(deferred []provider.Record) *api.Message {
	for _, rec := range deferred {
		if rec.Type == provider.RecordToolCall && rec.ToolCall != nil {
			c.appendToolUse(rec.ToolCall)
		}
	}

	var content []api.ContentBlock
	if c.text.Len() > 0 {
		content = append(content, api.NewTextBlock(c.text.String()))
	}
	content = append(content, c.toolBlocks...)

	stopReason := api.StopReasonEndTurn
	if len(c.toolBlocks) > 0 {
		stopReason = api.StopReasonToolUse
	}

	msg := api.NewMessage(c.messageID, c.model)
	if content != nil {
		msg.Content = content
	}
	msg.StopReason = &stopReason
	msg.Usage = api.Usage{InputTokens: c.inputTokens, OutputTokens: c.outputTokens}
	return msg
}

func (c *Collector) appendToolUse(call *provider.ToolCall) {
	id := call.ID
	if id == "" {
		id = api.NewToolUseID()
	}
	c.toolBlocks = append(c.toolBlocks, api.NewToolUseBlock(id, call.Name, call.Arguments))
}
