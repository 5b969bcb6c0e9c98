package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AIUsageRecord is the audit row persisted for every AI provider call.
// Raw counters are kept here so a cost breakdown can be re-derived against
// a later catalog version without touching historical ledger snapshots.
type AIUsageRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Related user ID.

	Provider string `gorm:"type:text;not null;index"` // Provider name.
	Model    string `gorm:"type:text;not null;index"` // Model name.

	// RequestID is the caller-chosen idempotency key for the billing debit.
	RequestID string `gorm:"type:text;not null;uniqueIndex"`

	InputTokens         int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens        int64 `gorm:"not null;default:0"` // Output token count.
	ReasoningTokens     int64 `gorm:"not null;default:0"` // Reasoning token count.
	CacheCreationTokens int64 `gorm:"not null;default:0"` // Cache write token count.
	CacheReadTokens     int64 `gorm:"not null;default:0"` // Cache read token count.
	AudioInputTokens    int64 `gorm:"not null;default:0"` // Audio input token count.
	VideoInputTokens    int64 `gorm:"not null;default:0"` // Video input token count.
	ImageInputTokens    int64 `gorm:"not null;default:0"` // Image input token count.
	ImagesGenerated     int64 `gorm:"not null;default:0"` // Generated image count.

	ToolCalls datatypes.JSON `gorm:"type:jsonb"` // Server-side tool invocation counts.

	Priced bool            `gorm:"not null;default:false"`                 // Whether a catalog entry was found.
	Cost   decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Total cost debited.
	Failed bool            `gorm:"not null;default:false"`                 // Provider call failure flag.

	RequestedAt time.Time `gorm:"not null;index"`          // Provider call timestamp.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
