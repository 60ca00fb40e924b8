package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestUsageStoreTotals(t *testing.T) {
	ctx := context.Background()
	store, err := NewUsageStore(ctx, filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewUsageStore: %v", err)
	}
	defer store.Close()

	records := []UsageRecord{
		{Timestamp: time.Now(), TaskID: "t1", Kind: KindGenerate, Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", PromptTokens: 100, CompletionTokens: 50, Cost: 0.001},
		{Timestamp: time.Now(), TaskID: "t1", Kind: KindReview, Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", PromptTokens: 200, CompletionTokens: 80, Cost: 0.002},
		{Timestamp: time.Now(), TaskID: "t2", Kind: KindFix, Provider: "local", Model: "llama3.1", PromptTokens: 50, CompletionTokens: 20, Cost: 0, Unpriced: true},
	}
	for _, r := range records {
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	totals, err := store.Totals(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Calls != 3 {
		t.Errorf("Calls = %d, want 3", totals.Calls)
	}
	if totals.UnpricedCalls != 1 {
		t.Errorf("UnpricedCalls = %d, want 1", totals.UnpricedCalls)
	}
	if diff := totals.Cost - 0.003; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Cost = %f, want 0.003", totals.Cost)
	}

	byProvider, err := store.TotalsByProvider(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("TotalsByProvider: %v", err)
	}
	if len(byProvider) != 2 {
		t.Errorf("providers = %v, want 2 entries", byProvider)
	}
}

func TestUsageStoreSinceFilter(t *testing.T) {
	ctx := context.Background()
	store, err := NewUsageStore(ctx, filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("NewUsageStore: %v", err)
	}
	defer store.Close()

	old := UsageRecord{Timestamp: time.Now().Add(-2 * time.Hour), Provider: "anthropic", Model: "m", Cost: 1}
	recent := UsageRecord{Timestamp: time.Now(), Provider: "anthropic", Model: "m", Cost: 2}
	if err := store.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, recent); err != nil {
		t.Fatal(err)
	}

	totals, err := store.Totals(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Calls != 1 {
		t.Errorf("Calls = %d, want only the recent record", totals.Calls)
	}
}
