// Package storage defines the usage-accounting store and utilities shared
// across its implementations, including sentinel errors and tenant context
// helpers.
//
// The gateway records one UsageRecord per completed request: model, token
// counts, stop reason, and tool-call count. Stores implement the UsageStore
// interface; pkg/storage/memory holds records in a bounded in-process ring
// and pkg/storage/postgres persists them with pgx.
package storage
