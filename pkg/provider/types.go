package provider

import (
	"github.com/kirogate/kirogate/pkg/api"
)

// RecordType classifies a decoded upstream unit.
type RecordType int

const (
	// RecordContent carries a text fragment of the assistant response.
	RecordContent RecordType = iota

	// RecordMetadata carries token usage totals.
	RecordMetadata

	// RecordToolCall carries a structured tool invocation, assembled by the
	// decoder from one or more upstream fragments.
	RecordToolCall
)

// Record is one decoded logical unit from the upstream framing protocol.
// Records are produced only by a RecordDecoder, consumed exactly once, and
// never mutated after creation.
type Record struct {
	Type RecordType

	// Text is the content fragment (RecordContent).
	Text string

	// Usage holds token totals (RecordMetadata).
	Usage *api.Usage

	// ToolCall holds the assembled invocation (RecordToolCall).
	ToolCall *ToolCall
}

// ToolCall is a structured tool invocation, parsed either from inline bracket
// markup inside content text or from dedicated upstream tool-use fragments.
// Identifiers and block indices are assigned downstream at emission time.
type ToolCall struct {
	// ID is the upstream-assigned identifier, when one exists. Inline
	// calls have none; the emitter generates one.
	ID string

	Name      string
	Arguments map[string]any
}

// RecordDecoder is the capability boundary between the upstream framing
// protocol and the emission layer. Implementations buffer partial frames
// internally: Feed may be called with arbitrary, non-aligned byte chunks
// (including empty ones) and yields zero or more complete records per call.
// Decoding is purely additive; a short chunk never regresses prior output.
//
// Drain must be called exactly once after end-of-stream. It returns records
// that were only derivable from the fully accumulated input, such as tool
// calls assembled from multiple fragments.
type RecordDecoder interface {
	Feed(p []byte) ([]Record, error)
	Drain() []Record
}

// StreamResult is one element of a streaming translation. Event is always
// populated. When Err is non-nil, Event holds the terminal error event that
// was emitted for it and the stream ends after this element.
type StreamResult struct {
	Event api.StreamEvent
	Err   error
}

// Observer receives raw upstream bytes and translated event bytes for
// diagnostics. Implementations must be side-effect free with respect to
// translation: the pipeline ignores anything an observer does, and a nil
// observer is always permitted.
type Observer interface {
	// ObserveRaw is called with each chunk read from the upstream transport.
	ObserveRaw(p []byte)

	// ObserveTranslated is called with each serialized target-protocol event.
	ObserveTranslated(p []byte)
}
