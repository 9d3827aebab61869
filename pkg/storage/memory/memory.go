// Package memory provides an in-process UsageStore backed by a bounded
// ring of records. When capacity is reached the oldest records are
// evicted, so the store is suitable for development and single-node
// deployments where durable accounting is not required.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kirogate/kirogate/pkg/storage"
)

// DefaultCapacity bounds the record count when none is configured.
const DefaultCapacity = 10000

// defaultListLimit caps ListUsage results when no limit is given.
const defaultListLimit = 100

// Store is an in-memory UsageStore. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	records  []*storage.UsageRecord
	capacity int
	closed   bool
}

var _ storage.UsageStore = (*Store)(nil)

// New creates a store bounded to capacity records. Non-positive
// capacity uses DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// RecordUsage appends a copy of rec, evicting the oldest record when
// the store is full.
func (s *Store) RecordUsage(ctx context.Context, rec *storage.UsageRecord) error {
	stored := *rec
	if tenant := storage.GetTenant(ctx); tenant != "" {
		stored.TenantID = tenant
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrNotFound
	}
	if len(s.records) >= s.capacity {
		s.records = s.records[1:]
	}
	s.records = append(s.records, &stored)
	return nil
}

// ListUsage returns matching records, newest first.
func (s *Store) ListUsage(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	tenant := storage.GetTenant(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.UsageRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if !s.matches(rec, tenant, opts) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

// Summarize aggregates records created at or after since.
func (s *Store) Summarize(ctx context.Context, since time.Time) (*storage.UsageSummary, error) {
	tenant := storage.GetTenant(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &storage.UsageSummary{}
	for _, rec := range s.records {
		if tenant != "" && rec.TenantID != tenant {
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		summary.Requests++
		summary.InputTokens += rec.InputTokens
		summary.OutputTokens += rec.OutputTokens
		summary.ToolCalls += rec.ToolCalls
	}
	return summary, nil
}

// HealthCheck always succeeds for an open store.
func (s *Store) HealthCheck(context.Context) error {
	return nil
}

// Close discards all records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.closed = true
	return nil
}

func (s *Store) matches(rec *storage.UsageRecord, tenant string, opts storage.ListOptions) bool {
	if tenant != "" && rec.TenantID != tenant {
		return false
	}
	if opts.Model != "" && rec.Model != opts.Model {
		return false
	}
	if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
		return false
	}
	return true
}
