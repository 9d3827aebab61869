// Package api defines the Anthropic Messages wire types served by the
// kirogate gateway: request and response objects, streaming event payloads,
// the error taxonomy, and identifier generation.
//
// The types here are transport- and backend-agnostic. Translation from the
// Kiro event stream into these shapes lives in pkg/provider/kiro.
package api
