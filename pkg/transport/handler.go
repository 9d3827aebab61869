package transport

import (
	"context"

	"github.com/kirogate/kirogate/pkg/api"
)

// MessageCreator handles the core create-message operation. The
// implementation receives a request and writes the result (streaming events
// or a complete message) to the ResponseWriter.
type MessageCreator interface {
	CreateMessage(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) error
}

// MessageCreatorFunc is an adapter that allows using an ordinary function
// as a MessageCreator.
type MessageCreatorFunc func(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) error

// CreateMessage calls f(ctx, req, w).
func (f MessageCreatorFunc) CreateMessage(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ResponseWriter abstracts streaming and non-streaming output for the
// handler. The transport layer creates a ResponseWriter for each request and
// provides it to the handler. The handler uses WriteEvent for streaming
// responses or WriteMessage for non-streaming responses.
//
// WriteEvent and WriteMessage are mutually exclusive on a single writer
// instance. Calling WriteEvent after WriteMessage (or vice versa) returns an
// error. Calling WriteEvent after a terminal event (message_stop or error)
// also returns an error.
type ResponseWriter interface {
	// WriteEvent sends a single streaming event. Returns an error if called
	// after a terminal event has been sent or after WriteMessage was called.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// WriteMessage sends a complete non-streaming message. Returns an error
	// if called after WriteEvent was called on this writer.
	WriteMessage(ctx context.Context, msg *api.Message) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
