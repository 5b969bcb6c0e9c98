package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User mirrors the platform account record owned by the main application.
// Balance is mutated exclusively through the ledger; every other writer
// must go through ledger.Credit/Debit so that balance always equals the
// sum of the user's balance transactions.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email string `gorm:"type:text;not null;uniqueIndex"` // Account email.
	Name  string `gorm:"type:text"`                      // Display name.
	Plan  string `gorm:"type:text;not null;default:''"`  // Subscription plan tier.

	Balance decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Prepaid balance in USD.

	LowBalanceWarnedAt *time.Time // Debounce flag for the low balance warning email.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
