package gateway

// ModelPrice holds per-token rates for one model, expressed in USD per
// million tokens (the unit both hosted APIs publish).
type ModelPrice struct {
	PromptPerMTok     float64
	CompletionPerMTok float64
}

// PriceTable maps model names to their price entries.
type PriceTable map[string]ModelPrice

// DefaultPriceTable returns the static price table for the hosted models we
// route to. Locally-hosted models are intentionally absent: they price at
// zero through the unknown-model path but are marked priced via the local
// provider's zero entry below.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		// Anthropic
		"claude-3-5-sonnet-20241022": {PromptPerMTok: 3.00, CompletionPerMTok: 15.00},
		"claude-3-5-haiku-20241022":  {PromptPerMTok: 0.80, CompletionPerMTok: 4.00},
		"claude-3-opus-20240229":     {PromptPerMTok: 15.00, CompletionPerMTok: 75.00},
		"claude-3-sonnet-20240229":   {PromptPerMTok: 3.00, CompletionPerMTok: 15.00},
		"claude-3-haiku-20240307":    {PromptPerMTok: 0.25, CompletionPerMTok: 1.25},

		// OpenAI
		"gpt-4o":        {PromptPerMTok: 2.50, CompletionPerMTok: 10.00},
		"gpt-4o-mini":   {PromptPerMTok: 0.15, CompletionPerMTok: 0.60},
		"gpt-4-turbo":   {PromptPerMTok: 10.00, CompletionPerMTok: 30.00},
		"gpt-3.5-turbo": {PromptPerMTok: 0.50, CompletionPerMTok: 1.50},

		// Local server models run on our own hardware; cost is zero by
		// construction, and listing them keeps them out of the unpriced bucket.
		"local-model": {},
		"llama3.1":    {},
		"qwen2.5":     {},
	}
}

// Cost computes the USD cost of a completion against the table.
// Unknown models return (0, false) so the caller can record unpriced usage.
func (t PriceTable) Cost(model string, promptTokens, completionTokens int) (float64, bool) {
	price, ok := t[model]
	if !ok {
		return 0, false
	}
	cost := float64(promptTokens)*price.PromptPerMTok/1e6 +
		float64(completionTokens)*price.CompletionPerMTok/1e6
	return cost, true
}
