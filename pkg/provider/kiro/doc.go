// Package kiro implements the provider adapter for the Kiro
// (CodeWhisperer) chat backend.
//
// The adapter speaks the AWS event-stream binary framing on the wire:
// responses arrive as length-prefixed frames carrying JSON event
// payloads, which are decoded incrementally and translated into
// Anthropic Messages API stream events or a collected Message.
//
// The translation pipeline is split into small, independently testable
// stages:
//
//   - Decoder turns raw bytes into provider.Records (eventstream.go)
//   - ParseBracketToolCalls extracts inline tool-call markers from
//     assistant text (toolcalls.go)
//   - StreamTranslator turns Records into SSE stream events (stream.go)
//   - Collector accumulates Records into a complete Message (collect.go)
//
// The Client wires the stages to the HTTP transport and implements
// provider.Provider.
package kiro
