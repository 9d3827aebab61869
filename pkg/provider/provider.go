package provider

import (
	"context"

	"github.com/kirogate/kirogate/pkg/api"
)

// Provider abstracts an upstream inference backend. The interface is
// protocol-agnostic: each adapter handles its own backend framing internally
// and surfaces results in the target Messages schema.
//
// Implementations must be safe for concurrent use by multiple goroutines;
// each call owns its own decoder and translation state.
type Provider interface {
	// Name returns the provider identifier (e.g., "kiro").
	Name() string

	// Complete performs non-streaming inference and returns the fully
	// materialized message. On failure no partial message is returned.
	Complete(ctx context.Context, req *api.MessagesRequest) (*api.Message, error)

	// Stream performs streaming inference. The returned channel yields
	// translated events in strict upstream arrival order and is closed by
	// the provider when the stream completes or fails. A failure is
	// delivered as a final element carrying both the terminal error event
	// and the error itself.
	Stream(ctx context.Context, req *api.MessagesRequest) (<-chan StreamResult, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
