package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirogate/kirogate/pkg/storage"
)

func record(model string, in, out int) *storage.UsageRecord {
	return &storage.UsageRecord{
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		StopReason:   "end_turn",
	}
}

func TestRecordAndList(t *testing.T) {
	s := New(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.RecordUsage(ctx, record("m1", 10, 20)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordUsage(ctx, record("m2", 1, 2)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListUsage(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d records, want 4", len(all))
	}
	// Newest first.
	if all[0].Model != "m2" {
		t.Errorf("first record model = %q, want m2", all[0].Model)
	}

	m1Only, err := s.ListUsage(ctx, storage.ListOptions{Model: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m1Only) != 3 {
		t.Errorf("model filter returned %d records, want 3", len(m1Only))
	}

	limited, err := s.ListUsage(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d records", len(limited))
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	for _, model := range []string{"a", "b", "c"} {
		if err := s.RecordUsage(ctx, record(model, 1, 1)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListUsage(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("listed %d records, want 2", len(all))
	}
	if all[0].Model != "c" || all[1].Model != "b" {
		t.Errorf("records = [%s %s], want [c b]", all[0].Model, all[1].Model)
	}
}

func TestTenantScoping(t *testing.T) {
	s := New(10)
	org1 := storage.SetTenant(context.Background(), "org-1")
	org2 := storage.SetTenant(context.Background(), "org-2")

	if err := s.RecordUsage(org1, record("m", 10, 5)); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUsage(org2, record("m", 100, 50)); err != nil {
		t.Fatal(err)
	}

	scoped, err := s.ListUsage(org1, storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].TenantID != "org-1" {
		t.Fatalf("scoped records = %+v", scoped)
	}

	summary, err := s.Summarize(org2, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Requests != 1 || summary.InputTokens != 100 {
		t.Errorf("summary = %+v", summary)
	}

	// No tenant sees everything.
	global, err := s.Summarize(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if global.Requests != 2 || global.InputTokens != 110 || global.OutputTokens != 55 {
		t.Errorf("global summary = %+v", global)
	}
}

func TestSummarizeSince(t *testing.T) {
	s := New(10)
	ctx := context.Background()

	old := record("m", 1, 1)
	old.CreatedAt = time.Now().Add(-time.Hour)
	if err := s.RecordUsage(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUsage(ctx, record("m", 2, 2)); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Summarize(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Requests != 1 || summary.InputTokens != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := New(10)
	ctx := context.Background()
	if err := s.RecordUsage(ctx, record("m", 1, 1)); err != nil {
		t.Fatal(err)
	}

	first, _ := s.ListUsage(ctx, storage.ListOptions{})
	first[0].Model = "mutated"

	second, _ := s.ListUsage(ctx, storage.ListOptions{})
	if second[0].Model != "m" {
		t.Error("mutation of a listed record leaked into the store")
	}
}
