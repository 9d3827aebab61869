// Package engine connects the transport layer to the upstream provider.
//
// The engine implements transport.MessageCreator. For each request it
// applies the default model, validates the request, dispatches to the
// provider's streaming or non-streaming path, forwards the result to the
// transport ResponseWriter, and records usage accounting.
package engine
