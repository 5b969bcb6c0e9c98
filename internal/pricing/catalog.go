// Package pricing holds the static, versioned price catalog for AI models
// and infrastructure resources, plus plan allocation helpers.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the catalog has no entry for a resource ID.
var ErrNotFound = errors.New("pricing: entry not found")

// Entry is an immutable price table for one billable unit, keyed by
// "<provider>/<resource>". Zero-valued rate fields mean the unit does not
// offer that dimension. Rate changes require a new catalog version, never
// in-place mutation: historical ledger snapshots are not recomputed.
type Entry struct {
	ID       string // Stable identifier, "<provider>/<resource>".
	Provider string // Provider segment of the ID.
	Resource string // Resource segment of the ID.
	Version  string // Catalog version this entry was introduced in.

	// Token rates in USD per million tokens.
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal

	// Long-context tier, applied when the caller flags a request above the
	// provider's context threshold. Offered only when the rates are set.
	LongContextThresholdTokens int64
	LongContextInputPerMTok    decimal.Decimal
	LongContextOutputPerMTok   decimal.Decimal

	// Prompt cache rates. CacheWritePerMTok is the default (5-minute) tier;
	// CacheWrite1hPerMTok is the 1-hour tier at 2x the base input rate.
	CacheWritePerMTok   decimal.Decimal
	CacheWrite1hPerMTok decimal.Decimal
	CacheReadPerMTok    decimal.Decimal

	// Multimodal input rates in USD per million tokens.
	AudioInputPerMTok decimal.Decimal
	VideoInputPerMTok decimal.Decimal
	ImageInputPerMTok decimal.Decimal

	// ImageOutputEach is the USD price per generated image.
	ImageOutputEach decimal.Decimal

	// Server-side tool rates in USD per 1,000 invocations, keyed by tool
	// type. Tool types absent from the map are not billable.
	ToolRatesPer1K map[string]decimal.Decimal

	// Infrastructure rates.
	HourlyRate  decimal.Decimal // USD per active hour.
	GBHourRate  decimal.Decimal // USD per GB-hour (runtime memory).
	GBMonthRate decimal.Decimal // USD per GB-month (storage).
}

// HasLongContextRates reports whether the entry defines a long-context tier.
func (e Entry) HasLongContextRates() bool {
	return e.LongContextInputPerMTok.IsPositive() && e.LongContextOutputPerMTok.IsPositive()
}

// Get returns the catalog entry for a resource ID.
func Get(resourceID string) (Entry, error) {
	entry, ok := catalog[strings.TrimSpace(resourceID)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, resourceID)
	}
	return entry, nil
}

// IDs returns all known resource IDs. Primarily for the admin console.
func IDs() []string {
	out := make([]string, 0, len(catalog))
	for id := range catalog {
		out = append(out, id)
	}
	return out
}

// catalog is built once at init from the entry list; lookups are O(1).
var catalog = func() map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry.ID, "/", 2)
		if len(parts) == 2 {
			entry.Provider = parts[0]
			entry.Resource = parts[1]
		}
		out[entry.ID] = entry
	}
	return out
}()
