// Package cost attributes language-model spend to chat turns.
package cost

import (
	"github.com/zeus-insurance/zeus-agent/internal/config"
	"github.com/zeus-insurance/zeus-agent/pkg/anthropic"
)

// Calculator computes USD costs for model usage.
type Calculator struct {
	rates map[string]config.ModelPricing
}

// NewCalculator creates a Calculator. Models missing from pricing fall back
// to DefaultRates.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	rates := DefaultRates()
	for model, r := range pricing.Anthropic {
		rates[model] = r
	}
	return &Calculator{rates: rates}
}

// Claude computes the cost of one Messages API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	cacheWriteMul := rate.CacheWriteMul
	if cacheWriteMul == 0 {
		cacheWriteMul = 1.25
	}
	cacheReadMul := rate.CacheReadMul
	if cacheReadMul == 0 {
		cacheReadMul = 0.1
	}

	in := float64(u.InputTokens) / 1e6 * rate.Input
	out := float64(u.OutputTokens) / 1e6 * rate.Output
	cw := float64(u.CacheCreationInputTokens) / 1e6 * rate.Input * cacheWriteMul
	cr := float64(u.CacheReadInputTokens) / 1e6 * rate.Input * cacheReadMul
	return in + out + cw + cr
}

// DefaultRates returns list prices (USD per million tokens).
func DefaultRates() map[string]config.ModelPricing {
	return map[string]config.ModelPricing{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-opus-4-1-20250805":   {Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	}
}
