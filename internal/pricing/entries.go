package pricing

import "github.com/shopspring/decimal"

// usd parses a literal rate; catalog rates are compile-time constants so a
// parse failure is a programming error.
func usd(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// Tool type identifiers reported by provider adapters.
const (
	ToolWebSearch      = "web_search"
	ToolCodeExecution  = "code_execution"
	ToolXSearch        = "x_search"
	ToolDocumentSearch = "document_search"
)

const catalogVersion = "2026-07"

// entries lists every billable unit. Token rates are USD per million
// tokens, tool rates USD per 1,000 calls, infra rates as labeled.
var entries = []Entry{
	{
		ID:                  "anthropic/claude-opus-4-1",
		Version:             catalogVersion,
		InputPerMTok:        usd("15"),
		OutputPerMTok:       usd("75"),
		CacheWritePerMTok:   usd("18.75"),
		CacheWrite1hPerMTok: usd("30"),
		CacheReadPerMTok:    usd("1.50"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch:     usd("10"),
			ToolCodeExecution: usd("50"),
		},
	},
	{
		ID:                         "anthropic/claude-sonnet-4-5",
		Version:                    catalogVersion,
		InputPerMTok:               usd("3"),
		OutputPerMTok:              usd("15"),
		LongContextThresholdTokens: 200_000,
		LongContextInputPerMTok:    usd("6"),
		LongContextOutputPerMTok:   usd("22.50"),
		CacheWritePerMTok:          usd("3.75"),
		CacheWrite1hPerMTok:        usd("6"),
		CacheReadPerMTok:           usd("0.30"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch:     usd("10"),
			ToolCodeExecution: usd("50"),
		},
	},
	{
		ID:                  "anthropic/claude-haiku-4-5",
		Version:             catalogVersion,
		InputPerMTok:        usd("1"),
		OutputPerMTok:       usd("5"),
		CacheWritePerMTok:   usd("1.25"),
		CacheWrite1hPerMTok: usd("2"),
		CacheReadPerMTok:    usd("0.10"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch: usd("10"),
		},
	},
	{
		ID:               "openai/gpt-5",
		Version:          catalogVersion,
		InputPerMTok:     usd("1.25"),
		OutputPerMTok:    usd("10"),
		CacheReadPerMTok: usd("0.125"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch:      usd("10"),
			ToolCodeExecution:  usd("30"),
			ToolDocumentSearch: usd("2.50"),
		},
	},
	{
		ID:               "openai/gpt-5-mini",
		Version:          catalogVersion,
		InputPerMTok:     usd("0.25"),
		OutputPerMTok:    usd("2"),
		CacheReadPerMTok: usd("0.025"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch: usd("10"),
		},
	},
	{
		ID:                "openai/gpt-image-1",
		Version:           catalogVersion,
		InputPerMTok:      usd("5"),
		ImageInputPerMTok: usd("10"),
		ImageOutputEach:   usd("0.042"),
	},
	{
		ID:                         "google/gemini-2.5-pro",
		Version:                    catalogVersion,
		InputPerMTok:               usd("1.25"),
		OutputPerMTok:              usd("10"),
		LongContextThresholdTokens: 200_000,
		LongContextInputPerMTok:    usd("2.50"),
		LongContextOutputPerMTok:   usd("15"),
		CacheReadPerMTok:           usd("0.31"),
		AudioInputPerMTok:          usd("1"),
		VideoInputPerMTok:          usd("1.25"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch: usd("35"),
		},
	},
	{
		ID:                "google/gemini-2.5-flash",
		Version:           catalogVersion,
		InputPerMTok:      usd("0.30"),
		OutputPerMTok:     usd("2.50"),
		CacheReadPerMTok:  usd("0.075"),
		AudioInputPerMTok: usd("1"),
		VideoInputPerMTok: usd("0.30"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch: usd("35"),
		},
	},
	{
		ID:               "xai/grok-4",
		Version:          catalogVersion,
		InputPerMTok:     usd("3"),
		OutputPerMTok:    usd("15"),
		CacheReadPerMTok: usd("0.75"),
		ToolRatesPer1K: map[string]decimal.Decimal{
			ToolWebSearch: usd("25"),
			ToolXSearch:   usd("25"),
		},
	},
	{
		ID:               "xai/grok-code-fast-1",
		Version:          catalogVersion,
		InputPerMTok:     usd("0.20"),
		OutputPerMTok:    usd("1.50"),
		CacheReadPerMTok: usd("0.02"),
	},

	// Infrastructure units.
	{
		ID:         "infra/sandbox",
		Version:    catalogVersion,
		HourlyRate: usd("0.076"),
	},
	{
		ID:         "infra/database",
		Version:    catalogVersion,
		HourlyRate: usd("0.023"),
	},
	{
		ID:         "infra/deployment",
		Version:    catalogVersion,
		GBHourRate: usd("0.0052"),
	},
	{
		ID:          "infra/storage",
		Version:     catalogVersion,
		GBMonthRate: usd("0.125"),
	},
}
