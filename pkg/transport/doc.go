// Package transport defines the handler interfaces and middleware chain for
// the kirogate HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the translation engine.
// It deserializes incoming requests into the protocol types defined in
// pkg/api, dispatches them for processing, and serializes responses back to
// the client in either synchronous (JSON) or streaming (SSE) format.
//
// # Handler Interface
//
// MessageCreator is the contract between the transport layer and the engine:
// the implementation receives a Messages request and writes the result
// (streaming events or a complete message) to the ResponseWriter.
//
// The ResponseWriter interface abstracts streaming and non-streaming output,
// allowing the handler to emit SSE events or complete JSON responses without
// knowing the underlying transport protocol.
//
// # Middleware
//
// The middleware chain wraps MessageCreator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns.
package transport
