package gateway

import "testing"

func TestPriceTableCost(t *testing.T) {
	table := DefaultPriceTable()

	tests := []struct {
		model            string
		promptTokens     int
		completionTokens int
		wantCost         float64
		wantPriced       bool
	}{
		{"claude-3-5-sonnet-20241022", 1_000_000, 1_000_000, 18.00, true},
		{"claude-3-5-sonnet-20241022", 1000, 500, 0.0105, true},
		{"gpt-4o-mini", 2_000_000, 0, 0.30, true},
		{"llama3.1", 1_000_000, 1_000_000, 0, true},
		{"gpt-5-experimental", 1000, 1000, 0, false},
		{"", 1000, 1000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			cost, priced := table.Cost(tt.model, tt.promptTokens, tt.completionTokens)
			if priced != tt.wantPriced {
				t.Errorf("priced = %t, want %t", priced, tt.wantPriced)
			}
			if diff := cost - tt.wantCost; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cost = %f, want %f", cost, tt.wantCost)
			}
		})
	}
}

func TestPriceTableZeroTokens(t *testing.T) {
	table := DefaultPriceTable()
	cost, priced := table.Cost("gpt-4o", 0, 0)
	if !priced || cost != 0 {
		t.Errorf("Cost(gpt-4o, 0, 0) = %f, %t", cost, priced)
	}
}
