package storage

import (
	"context"
	"time"
)

// UsageRecord is one completed request's accounting entry.
type UsageRecord struct {
	// RequestID is the transport-level request identifier.
	RequestID string

	// TenantID scopes the record in multi-tenant deployments. Empty in
	// single-tenant mode.
	TenantID string

	// Model is the model name as requested by the client.
	Model string

	// StopReason is the stop reason the response ended with, or "error"
	// for failed requests.
	StopReason string

	// Streamed reports whether the response was delivered over SSE.
	Streamed bool

	InputTokens  int
	OutputTokens int

	// ToolCalls counts the tool_use blocks in the response.
	ToolCalls int

	CreatedAt time.Time
}

// ListOptions filters usage listings.
type ListOptions struct {
	// Model filters by requested model name. Empty matches all.
	Model string

	// Since excludes records created before it. Zero matches all.
	Since time.Time

	// Limit caps the number of returned records, newest first.
	// Zero or negative means the store default.
	Limit int
}

// UsageSummary aggregates usage over a period.
type UsageSummary struct {
	Requests     int
	InputTokens  int
	OutputTokens int
	ToolCalls    int
}

// UsageStore records and reports per-request usage. Implementations scope
// reads and writes by the tenant in the context when one is set.
type UsageStore interface {
	// RecordUsage persists one accounting entry. The tenant from the
	// context wins over rec.TenantID when both are set.
	RecordUsage(ctx context.Context, rec *UsageRecord) error

	// ListUsage returns matching records, newest first.
	ListUsage(ctx context.Context, opts ListOptions) ([]*UsageRecord, error)

	// Summarize aggregates records created at or after since.
	Summarize(ctx context.Context, since time.Time) (*UsageSummary, error)

	// HealthCheck verifies the store is functional.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
