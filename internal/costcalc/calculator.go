// Package costcalc converts normalized usage reports into itemized USD
// cost breakdowns. Calculations are pure: identical inputs always yield
// identical breakdowns, with no I/O and no ambient state.
package costcalc

import (
	"strings"

	"github.com/craft-platform/craft-metering/internal/pricing"
	"github.com/shopspring/decimal"
)

// UsageReport is the canonical, provider-agnostic shape for one AI call.
// Provider adapters normalize their incompatible field names into this at
// the boundary so the calculator has a single code path.
//
// CacheReadTokens is a subset of InputTokens: providers report cache hits
// inside the input total, so billable input is input minus cache reads.
type UsageReport struct {
	InputTokens         int64            `json:"input_tokens"`
	OutputTokens        int64            `json:"output_tokens"`
	ReasoningTokens     int64            `json:"reasoning_tokens"`
	CacheCreationTokens int64            `json:"cache_creation_tokens"`
	CacheReadTokens     int64            `json:"cache_read_tokens"`
	AudioInputTokens    int64            `json:"audio_input_tokens"`
	VideoInputTokens    int64            `json:"video_input_tokens"`
	ImageInputTokens    int64            `json:"image_input_tokens"`
	ImagesGenerated     int64            `json:"images_generated"`
	ToolCalls           map[string]int64 `json:"tool_calls,omitempty"`
}

// Cache duration tiers.
const (
	// CacheDurationDefault is the provider default (5-minute) cache tier.
	CacheDurationDefault = "5m"
	// CacheDuration1h requests the 1-hour cache tier at its premium rate.
	CacheDuration1h = "1h"
)

// Modifiers adjust the rates applied before any per-field calculation.
type Modifiers struct {
	// BatchMode applies the flat 50% batch discount to input and output
	// token rates, after any long-context swap.
	BatchMode bool `json:"batch_mode"`
	// LongContext swaps in the long-context rate tier when the catalog
	// entry defines one.
	LongContext bool `json:"long_context"`
	// CacheDuration selects the cache-write tier ("5m" default, "1h").
	CacheDuration string `json:"cache_duration,omitempty"`
}

// Breakdown itemizes the cost of one usage report. All amounts are USD.
type Breakdown struct {
	ResourceID    string `json:"resource_id"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	DiscountLabel string `json:"discount_label,omitempty"`

	InputCost       decimal.Decimal `json:"input_cost"`
	OutputCost      decimal.Decimal `json:"output_cost"`
	ReasoningCost   decimal.Decimal `json:"reasoning_cost"`
	CacheWriteCost  decimal.Decimal `json:"cache_write_cost"`
	CacheReadCost   decimal.Decimal `json:"cache_read_cost"`
	AudioInputCost  decimal.Decimal `json:"audio_input_cost"`
	VideoInputCost  decimal.Decimal `json:"video_input_cost"`
	ImageInputCost  decimal.Decimal `json:"image_input_cost"`
	ImageOutputCost decimal.Decimal `json:"image_output_cost"`

	ToolCosts map[string]decimal.Decimal `json:"tool_costs,omitempty"`

	TotalTokenCost decimal.Decimal `json:"total_token_cost"`
	TotalToolCost  decimal.Decimal `json:"total_tool_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
	half     = decimal.RequireFromString("0.5")
)

// Calculate prices a usage report against the catalog entry for
// resourceID. It returns pricing.ErrNotFound (wrapped) when the catalog
// has no entry.
func Calculate(resourceID string, usage UsageReport, mods Modifiers) (Breakdown, error) {
	entry, errGet := pricing.Get(resourceID)
	if errGet != nil {
		return Breakdown{}, errGet
	}

	breakdown := Breakdown{
		ResourceID: entry.ID,
		Provider:   entry.Provider,
		Model:      entry.Resource,
	}

	inputRate := entry.InputPerMTok
	outputRate := entry.OutputPerMTok
	cacheReadRate := entry.CacheReadPerMTok

	var labels []string
	if mods.LongContext && entry.HasLongContextRates() {
		inputRate = entry.LongContextInputPerMTok
		outputRate = entry.LongContextOutputPerMTok
		labels = append(labels, "long-context premium")
	}
	if mods.BatchMode {
		inputRate = inputRate.Mul(half)
		outputRate = outputRate.Mul(half)
		labels = append(labels, "batch 50%")
	}
	breakdown.DiscountLabel = strings.Join(labels, ", ")

	cacheWriteRate := entry.CacheWritePerMTok
	if mods.CacheDuration == CacheDuration1h && entry.CacheWrite1hPerMTok.IsPositive() {
		cacheWriteRate = entry.CacheWrite1hPerMTok
	}

	// Cache-read tokens arrive as part of the input total; bill them once
	// at the cache-read rate and exclude them from regular input.
	billableInput := clampTokens(usage.InputTokens)
	cacheRead := clampTokens(usage.CacheReadTokens)
	if cacheRead > billableInput {
		cacheRead = billableInput
	}
	billableInput -= cacheRead

	breakdown.InputCost = perMTokCost(billableInput, inputRate)
	breakdown.OutputCost = perMTokCost(clampTokens(usage.OutputTokens), outputRate)
	// Reasoning tokens bill at the output rate but stay a separate line.
	breakdown.ReasoningCost = perMTokCost(clampTokens(usage.ReasoningTokens), outputRate)
	breakdown.CacheWriteCost = perMTokCost(clampTokens(usage.CacheCreationTokens), cacheWriteRate)
	breakdown.CacheReadCost = perMTokCost(cacheRead, cacheReadRate)
	breakdown.AudioInputCost = perMTokCost(clampTokens(usage.AudioInputTokens), entry.AudioInputPerMTok)
	breakdown.VideoInputCost = perMTokCost(clampTokens(usage.VideoInputTokens), entry.VideoInputPerMTok)
	breakdown.ImageInputCost = perMTokCost(clampTokens(usage.ImageInputTokens), entry.ImageInputPerMTok)
	breakdown.ImageOutputCost = decimal.NewFromInt(clampTokens(usage.ImagesGenerated)).Mul(entry.ImageOutputEach)

	breakdown.TotalTokenCost = decimal.Sum(
		breakdown.InputCost,
		breakdown.OutputCost,
		breakdown.ReasoningCost,
		breakdown.CacheWriteCost,
		breakdown.CacheReadCost,
		breakdown.AudioInputCost,
		breakdown.VideoInputCost,
		breakdown.ImageInputCost,
		breakdown.ImageOutputCost,
	)

	// Server-side tools bill per 1,000 invocations, never per token.
	// Unknown tool types are ignored for forward compatibility.
	breakdown.TotalToolCost = decimal.Zero
	for tool, calls := range usage.ToolCalls {
		if calls <= 0 {
			continue
		}
		rate, ok := entry.ToolRatesPer1K[tool]
		if !ok {
			continue
		}
		cost := decimal.NewFromInt(calls).Mul(rate).Div(thousand)
		if breakdown.ToolCosts == nil {
			breakdown.ToolCosts = make(map[string]decimal.Decimal)
		}
		breakdown.ToolCosts[tool] = cost
		breakdown.TotalToolCost = breakdown.TotalToolCost.Add(cost)
	}

	breakdown.TotalCost = breakdown.TotalTokenCost.Add(breakdown.TotalToolCost)
	return breakdown, nil
}

func perMTokCost(tokens int64, ratePerMTok decimal.Decimal) decimal.Decimal {
	if tokens <= 0 || !ratePerMTok.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokens).Mul(ratePerMTok).Div(million)
}

func clampTokens(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
