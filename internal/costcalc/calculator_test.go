package costcalc

import (
	"errors"
	"testing"

	"github.com/craft-platform/craft-metering/internal/pricing"
	"github.com/shopspring/decimal"
)

func mustEqual(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

func TestCalculateCachedInputNeverDoubleCounted(t *testing.T) {
	usage := UsageReport{
		InputTokens:     10_000,
		CacheReadTokens: 4_000,
	}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}

	// 6,000 billable input at $3/MTok, 4,000 cache reads at $0.30/MTok.
	mustEqual(t, breakdown.InputCost, "0.018", "input cost")
	mustEqual(t, breakdown.CacheReadCost, "0.0012", "cache read cost")
	mustEqual(t, breakdown.TotalCost, "0.0192", "total cost")
}

func TestCalculateCacheReadsClampedToInput(t *testing.T) {
	usage := UsageReport{
		InputTokens:     1_000,
		CacheReadTokens: 5_000,
	}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	if !breakdown.InputCost.IsZero() {
		t.Fatalf("input cost should be zero when cache reads cover all input, got %s", breakdown.InputCost)
	}
	// Only 1,000 cache reads are billable.
	mustEqual(t, breakdown.CacheReadCost, "0.0003", "cache read cost")
}

func TestCalculateReasoningAtOutputRateSeparateLine(t *testing.T) {
	usage := UsageReport{
		OutputTokens:    1_000,
		ReasoningTokens: 500,
	}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	mustEqual(t, breakdown.OutputCost, "0.015", "output cost")
	mustEqual(t, breakdown.ReasoningCost, "0.0075", "reasoning cost")
}

func TestCalculateBatchModeHalvesTokenRates(t *testing.T) {
	usage := UsageReport{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	full, _ := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	batch, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{BatchMode: true})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	if !batch.TotalCost.Mul(decimal.NewFromInt(2)).Equal(full.TotalCost) {
		t.Fatalf("batch total %s is not exactly half of %s", batch.TotalCost, full.TotalCost)
	}
	if batch.DiscountLabel != "batch 50%" {
		t.Fatalf("unexpected discount label %q", batch.DiscountLabel)
	}
}

func TestCalculateLongContextSwapThenBatchHalving(t *testing.T) {
	usage := UsageReport{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{
		LongContext: true,
		BatchMode:   true,
	})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}

	// Long-context rates 6/22.50 swapped in first, then halved to 3/11.25.
	mustEqual(t, breakdown.InputCost, "3", "input cost")
	mustEqual(t, breakdown.OutputCost, "11.25", "output cost")
	if breakdown.DiscountLabel != "long-context premium, batch 50%" {
		t.Fatalf("unexpected discount label %q", breakdown.DiscountLabel)
	}
}

func TestCalculateLongContextIgnoredWithoutTier(t *testing.T) {
	usage := UsageReport{InputTokens: 1_000_000}
	breakdown, errCalc := Calculate("anthropic/claude-haiku-4-5", usage, Modifiers{LongContext: true})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	mustEqual(t, breakdown.InputCost, "1", "input cost")
	if breakdown.DiscountLabel != "" {
		t.Fatalf("unexpected discount label %q", breakdown.DiscountLabel)
	}
}

func TestCalculateCacheWriteTiers(t *testing.T) {
	usage := UsageReport{CacheCreationTokens: 1_000_000}

	standard, _ := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	mustEqual(t, standard.CacheWriteCost, "3.75", "default tier cache write")

	hourly, _ := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{CacheDuration: CacheDuration1h})
	mustEqual(t, hourly.CacheWriteCost, "6", "1h tier cache write")
}

func TestCalculateToolCallsPerThousand(t *testing.T) {
	usage := UsageReport{
		ToolCalls: map[string]int64{
			pricing.ToolWebSearch: 2_000,
			"made_up_tool":        9_999,
		},
	}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}

	// 2,000 searches at $10 per 1,000 calls; the unknown tool is ignored.
	mustEqual(t, breakdown.TotalToolCost, "20", "tool cost")
	if _, ok := breakdown.ToolCosts["made_up_tool"]; ok {
		t.Fatal("unknown tool types must not be billed")
	}
}

func TestCalculateImageGeneration(t *testing.T) {
	usage := UsageReport{ImagesGenerated: 10}
	breakdown, errCalc := Calculate("openai/gpt-image-1", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	mustEqual(t, breakdown.ImageOutputCost, "0.42", "image output cost")
}

func TestCalculateUnknownModel(t *testing.T) {
	_, errCalc := Calculate("nobody/unknown-model", UsageReport{InputTokens: 1}, Modifiers{})
	if !errors.Is(errCalc, pricing.ErrNotFound) {
		t.Fatalf("expected pricing.ErrNotFound, got %v", errCalc)
	}
}

func TestCalculateNegativeCountsClamped(t *testing.T) {
	usage := UsageReport{InputTokens: -100, OutputTokens: -5}
	breakdown, errCalc := Calculate("anthropic/claude-sonnet-4-5", usage, Modifiers{})
	if errCalc != nil {
		t.Fatalf("calculate: %v", errCalc)
	}
	if !breakdown.TotalCost.IsZero() {
		t.Fatalf("negative counts must clamp to zero cost, got %s", breakdown.TotalCost)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	usage := UsageReport{
		InputTokens:         123_456,
		OutputTokens:        7_890,
		ReasoningTokens:     321,
		CacheCreationTokens: 1_000,
		CacheReadTokens:     50_000,
		ToolCalls:           map[string]int64{pricing.ToolWebSearch: 7},
	}
	first, _ := Calculate("anthropic/claude-opus-4-1", usage, Modifiers{BatchMode: true})
	second, _ := Calculate("anthropic/claude-opus-4-1", usage, Modifiers{BatchMode: true})
	if !first.TotalCost.Equal(second.TotalCost) {
		t.Fatalf("calculator is not pure: %s vs %s", first.TotalCost, second.TotalCost)
	}
}
