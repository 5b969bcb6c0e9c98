package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction type tags recorded on ledger entries.
const (
	// TransactionTypeTopup records a user-initiated balance purchase.
	TransactionTypeTopup = "TOPUP"
	// TransactionTypeAIUsage records a debit for an AI provider call.
	TransactionTypeAIUsage = "AI_USAGE"
	// TransactionTypeInfraUsage records a debit for infrastructure usage.
	TransactionTypeInfraUsage = "INFRA_USAGE"
	// TransactionTypeCreditExpiration records the forfeiture of an expired top-up.
	TransactionTypeCreditExpiration = "CREDIT_EXPIRATION"
	// TransactionTypeReferralCredit records a referral program reward.
	TransactionTypeReferralCredit = "REFERRAL_CREDIT"
	// TransactionTypeRefund records a refunded charge.
	TransactionTypeRefund = "REFUND"
	// TransactionTypeAdminAdjustment records a manual admin correction.
	TransactionTypeAdminAdjustment = "ADMIN_ADJUSTMENT"
)

// BalanceTransaction is an append-only ledger entry. Rows are created in
// the same database transaction that updates User.Balance and are never
// updated afterwards, except to set the expiration fields on TOPUP rows.
type BalanceTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64          `gorm:"not null;index"`               // Owning user.
	User   *User           `gorm:"foreignKey:UserID"`            // User relation.
	Type   string          `gorm:"type:text;not null;index"`     // Transaction type tag.
	Amount decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Signed amount (credits positive, debits negative).

	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Balance snapshot before the write.
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Balance snapshot after the write.

	Description string `gorm:"type:text"` // Human-readable description.

	// IdempotencyKey dedupes retried billing operations. The unique index
	// backs up the in-transaction existence check.
	IdempotencyKey *string        `gorm:"type:text;uniqueIndex"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"` // Caller metadata bag.

	// Expiration fields, meaningful only for TOPUP rows.
	Expired       bool             `gorm:"not null;default:false;index"` // Set once by the expiration sweep.
	ExpiredAmount *decimal.Decimal `gorm:"type:decimal(20,10)"`          // Unspent portion forfeited at expiration.
	ExpiredAt     *time.Time       // When the expiration sweep processed this top-up.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
