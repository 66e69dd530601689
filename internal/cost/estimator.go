// Package cost estimates the dollar cost of a chat turn from the token
// counts reported by the provider, and records per-turn usage.
package cost

import "math"

// ModelPricing is USD per million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// FallbackModel prices any model identifier missing from the table.
const FallbackModel = "claude-sonnet-4-20250514"

func defaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"claude-opus-4-5-20251101":   {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		"claude-sonnet-4-20250514":   {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-3-5-sonnet-20241022": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.0},
		"claude-3-opus-20240229":     {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		"claude-3-sonnet-20240229":   {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-3-haiku-20240307":    {InputPerMTok: 0.25, OutputPerMTok: 1.25},
	}
}

// Estimator computes cost estimates from an immutable pricing table.
// Safe for concurrent use; the table is never mutated after construction.
type Estimator struct {
	pricing  map[string]ModelPricing
	fallback string
}

func NewEstimator() *Estimator {
	return NewEstimatorWithPricing(defaultPricing(), FallbackModel)
}

// NewEstimatorWithPricing builds an estimator over a caller-supplied table,
// copying it so later mutation of the argument has no effect. The fallback
// model must be present in the table.
func NewEstimatorWithPricing(pricing map[string]ModelPricing, fallbackModel string) *Estimator {
	table := make(map[string]ModelPricing, len(pricing))
	for id, p := range pricing {
		table[id] = p
	}
	return &Estimator{pricing: table, fallback: fallbackModel}
}

// Estimate returns the cost in USD for the given token counts, rounded to
// four decimal places. Unknown models fall back to the default model's
// pricing rather than failing.
func (e *Estimator) Estimate(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := e.pricing[model]
	if !ok {
		pricing = e.pricing[e.fallback]
	}

	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPerMTok
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPerMTok

	return math.Round((inputCost+outputCost)*10000) / 10000
}
