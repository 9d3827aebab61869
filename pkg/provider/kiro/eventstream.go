package kiro

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/provider"
)

// Event-stream framing constants. A frame is a 12-byte prelude
// (total length, headers length, prelude CRC), a header block, a JSON
// payload, and a trailing CRC over everything before it. All integers
// are big-endian and both CRCs are CRC32/IEEE.
const (
	preludeSize  = 12
	minFrameSize = preludeSize + 4
	maxFrameSize = 16 * 1024 * 1024
)

// Header value types, per the event-stream encoding. Only string
// headers carry routing information; the rest are skipped by size.
const (
	headerTypeBoolTrue  = 0
	headerTypeBoolFalse = 1
	headerTypeByte      = 2
	headerTypeInt16     = 3
	headerTypeInt32     = 4
	headerTypeInt64     = 5
	headerTypeByteArray = 6
	headerTypeString    = 7
	headerTypeTimestamp = 8
	headerTypeUUID      = 9
)

// FramingError reports structurally invalid framing: a corrupt prelude,
// a CRC mismatch, or a frame size outside the allowed bounds. Framing
// errors are not recoverable; the decoder cannot resynchronize once the
// length prefix is untrustworthy.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "event stream: " + e.Reason
}

func framingErrorf(format string, args ...any) *FramingError {
	return &FramingError{Reason: fmt.Sprintf(format, args...)}
}

// toolCallState accumulates input fragments for one tool use until the
// upstream signals completion with stop=true.
type toolCallState struct {
	id       string
	name     string
	input    []byte
	complete bool
}

// Decoder is an incremental event-stream decoder. Bytes are appended
// via Feed in whatever chunk sizes the transport delivers them; frame
// boundaries never have to line up with chunk boundaries. Completed
// tool calls are held back and surfaced by Drain so that callers can
// emit them after all text content.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	buf    []byte
	failed bool

	tools     map[string]*toolCallState
	toolOrder []string

	logger *slog.Logger
}

// NewDecoder returns a Decoder ready to accept bytes. A nil logger
// falls back to slog.Default.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		tools:  make(map[string]*toolCallState),
		logger: logger,
	}
}

// Feed appends p to the internal buffer and decodes every complete
// frame it now holds, returning the resulting records in wire order.
// A partial frame at the tail is retained for the next call. Feeding
// the same stream in different chunkings produces the same records.
//
// A non-nil error is a *FramingError or *UpstreamError; after either,
// the decoder is poisoned and further calls return the same condition.
func (d *Decoder) Feed(p []byte) ([]provider.Record, error) {
	if d.failed {
		return nil, framingErrorf("decoder previously failed")
	}
	d.buf = append(d.buf, p...)

	var records []provider.Record
	for {
		if len(d.buf) < preludeSize {
			return records, nil
		}
		totalLen := binary.BigEndian.Uint32(d.buf[0:4])
		headersLen := binary.BigEndian.Uint32(d.buf[4:8])
		preludeCRC := binary.BigEndian.Uint32(d.buf[8:12])

		// Validate the prelude before waiting for the body: a
		// corrupt length prefix would otherwise stall forever.
		if computed := crc32.ChecksumIEEE(d.buf[0:8]); computed != preludeCRC {
			d.failed = true
			return records, framingErrorf("prelude CRC mismatch: got %#x, want %#x", computed, preludeCRC)
		}
		if totalLen < minFrameSize || totalLen > maxFrameSize {
			d.failed = true
			return records, framingErrorf("frame length %d outside [%d, %d]", totalLen, minFrameSize, maxFrameSize)
		}
		if headersLen > totalLen-minFrameSize {
			d.failed = true
			return records, framingErrorf("headers length %d exceeds frame capacity %d", headersLen, totalLen-minFrameSize)
		}

		if uint32(len(d.buf)) < totalLen {
			return records, nil
		}

		frame := d.buf[:totalLen]
		messageCRC := binary.BigEndian.Uint32(frame[totalLen-4:])
		if computed := crc32.ChecksumIEEE(frame[:totalLen-4]); computed != messageCRC {
			d.failed = true
			return records, framingErrorf("message CRC mismatch: got %#x, want %#x", computed, messageCRC)
		}

		headers, err := parseHeaders(frame[preludeSize : preludeSize+headersLen])
		if err != nil {
			d.failed = true
			return records, err
		}
		payload := frame[preludeSize+headersLen : totalLen-4]

		recs, err := d.dispatch(headers, payload)
		if err != nil {
			d.failed = true
			return records, err
		}
		records = append(records, recs...)

		d.buf = d.buf[totalLen:]
	}
}

// Drain returns the buffered tool calls in the order their first
// fragment arrived and resets the tool buffers. Call it once the
// stream has ended; incomplete calls are flushed too, since no further
// fragments can arrive.
func (d *Decoder) Drain() []provider.Record {
	var records []provider.Record
	for _, id := range d.toolOrder {
		state := d.tools[id]
		if !state.complete {
			d.logger.Warn("flushing incomplete tool call at end of stream",
				"tool_use_id", state.id, "tool_name", state.name)
		}
		records = append(records, provider.Record{
			Type:     provider.RecordToolCall,
			ToolCall: d.assembleToolCall(state),
		})
	}
	d.tools = make(map[string]*toolCallState)
	d.toolOrder = nil
	return records
}

// assembleToolCall decodes the accumulated input fragments. Malformed
// argument JSON is recovered as an empty object so the surrounding
// message still translates.
func (d *Decoder) assembleToolCall(state *toolCallState) *provider.ToolCall {
	call := &provider.ToolCall{
		ID:        state.id,
		Name:      state.name,
		Arguments: map[string]any{},
	}
	if len(state.input) == 0 {
		return call
	}
	if err := json.Unmarshal(state.input, &call.Arguments); err != nil {
		d.logger.Warn("tool call arguments are not valid JSON, substituting empty object",
			"tool_use_id", state.id, "tool_name", state.name, "error", err)
		call.Arguments = map[string]any{}
	}
	return call
}

func (d *Decoder) dispatch(headers frameHeaders, payload []byte) ([]provider.Record, error) {
	switch headers.messageType {
	case "event":
	case "exception":
		return nil, newUpstreamError(headers.exceptionType, payload)
	case "error":
		return nil, newUpstreamError(headers.errorCode, payload)
	default:
		d.logger.Debug("skipping frame with unknown message type", "message_type", headers.messageType)
		return nil, nil
	}

	switch headers.eventType {
	case "assistantResponseEvent":
		var ev assistantResponseEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, framingErrorf("assistantResponseEvent payload: %v", err)
		}
		return []provider.Record{{Type: provider.RecordContent, Text: ev.Content}}, nil

	case "toolUseEvent":
		var ev toolUseEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, framingErrorf("toolUseEvent payload: %v", err)
		}
		d.bufferToolUse(ev)
		return nil, nil

	case "messageMetadataEvent", "metadataEvent":
		var ev metadataEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, framingErrorf("%s payload: %v", headers.eventType, err)
		}
		return []provider.Record{{Type: provider.RecordMetadata, Usage: ev.usage()}}, nil

	default:
		d.logger.Debug("skipping unknown event type", "event_type", headers.eventType)
		return nil, nil
	}
}

func (d *Decoder) bufferToolUse(ev toolUseEvent) {
	state, ok := d.tools[ev.ToolUseID]
	if !ok {
		state = &toolCallState{id: ev.ToolUseID, name: ev.Name}
		d.tools[ev.ToolUseID] = state
		d.toolOrder = append(d.toolOrder, ev.ToolUseID)
	}
	if state.name == "" {
		state.name = ev.Name
	}
	state.input = append(state.input, ev.Input...)
	if ev.Stop {
		state.complete = true
	}
}

func (ev *metadataEvent) usage() *api.Usage {
	u := &api.Usage{
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
	}
	if tu := ev.TokenUsage; tu != nil {
		u.InputTokens = tu.UncachedInputTokens + tu.CacheReadInputTokens
		if u.InputTokens == 0 {
			u.InputTokens = tu.InputTokens
		}
		u.OutputTokens = tu.OutputTokens
	}
	return u
}

// frameHeaders holds the routing headers a frame can carry.
type frameHeaders struct {
	messageType   string
	eventType     string
	exceptionType string
	errorCode     string
}

// parseHeaders walks the header block. Non-string values cannot route a
// frame and are skipped by their encoded size.
func parseHeaders(b []byte) (frameHeaders, error) {
	var h frameHeaders
	for len(b) > 0 {
		nameLen := int(b[0])
		b = b[1:]
		if len(b) < nameLen+1 {
			return h, framingErrorf("truncated header name")
		}
		name := string(b[:nameLen])
		valueType := b[nameLen]
		b = b[nameLen+1:]

		switch valueType {
		case headerTypeBoolTrue, headerTypeBoolFalse:
		case headerTypeByte:
			b = skipHeaderValue(b, 1)
		case headerTypeInt16:
			b = skipHeaderValue(b, 2)
		case headerTypeInt32:
			b = skipHeaderValue(b, 4)
		case headerTypeInt64, headerTypeTimestamp:
			b = skipHeaderValue(b, 8)
		case headerTypeUUID:
			b = skipHeaderValue(b, 16)
		case headerTypeByteArray, headerTypeString:
			if len(b) < 2 {
				return h, framingErrorf("truncated header value length")
			}
			valueLen := int(binary.BigEndian.Uint16(b))
			b = b[2:]
			if len(b) < valueLen {
				return h, framingErrorf("truncated header value")
			}
			if valueType == headerTypeString {
				value := string(b[:valueLen])
				switch name {
				case ":message-type":
					h.messageType = value
				case ":event-type":
					h.eventType = value
				case ":exception-type":
					h.exceptionType = value
				case ":error-code":
					h.errorCode = value
				}
			}
			b = b[valueLen:]
		default:
			return h, framingErrorf("unknown header value type %d", valueType)
		}
		if b == nil {
			return h, framingErrorf("truncated header value")
		}
	}
	return h, nil
}

func skipHeaderValue(b []byte, n int) []byte {
	if len(b) < n {
		return nil
	}
	return b[n:]
}
