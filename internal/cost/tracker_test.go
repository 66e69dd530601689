package cost

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryTracker_Record(t *testing.T) {
	tracker := NewInMemoryTracker()
	ctx := context.Background()

	record := UsageRecord{
		RequestID:    "req-1",
		Agent:        "CustomerSupport",
		Model:        "claude-sonnet-4-20250514",
		Provider:     "anthropic",
		InputTokens:  100,
		OutputTokens: 50,
		CostUSD:      0.01,
		Streamed:     true,
		Timestamp:    time.Now(),
	}

	if err := tracker.Record(ctx, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := tracker.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RequestID != "req-1" {
		t.Errorf("request id = %q, want %q", records[0].RequestID, "req-1")
	}
}

func TestInMemoryTracker_TotalCost(t *testing.T) {
	tracker := NewInMemoryTracker()
	ctx := context.Background()

	tracker.Record(ctx, UsageRecord{RequestID: "a", CostUSD: 0.10})
	tracker.Record(ctx, UsageRecord{RequestID: "b", CostUSD: 0.20})
	tracker.Record(ctx, UsageRecord{RequestID: "c", CostUSD: 0.50})

	total, err := tracker.TotalCost(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if total < 0.79 || total > 0.81 {
		t.Errorf("expected ~0.80, got %f", total)
	}
}

func TestInMemoryTracker_RecordsReturnsCopy(t *testing.T) {
	tracker := NewInMemoryTracker()
	ctx := context.Background()

	tracker.Record(ctx, UsageRecord{RequestID: "a", CostUSD: 0.10})

	records := tracker.Records()
	records[0].CostUSD = 99.0

	total, _ := tracker.TotalCost(ctx)
	if total > 0.11 {
		t.Errorf("mutation of returned slice leaked into tracker: total = %f", total)
	}
}
