package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metered resource types.
const (
	// ResourceTypeSandbox is an ephemeral cloud sandbox billed hourly.
	ResourceTypeSandbox = "sandbox"
	// ResourceTypeDatabase is a managed database instance billed hourly.
	ResourceTypeDatabase = "database"
	// ResourceTypeDeployment is a deployed app runtime billed daily.
	ResourceTypeDeployment = "deployment"
	// ResourceTypeStorage is stored data billed daily per GB.
	ResourceTypeStorage = "storage"
)

// Metered resource statuses.
const (
	// ResourceStatusActive marks a resource that accrues usage.
	ResourceStatusActive = "active"
	// ResourceStatusPausedLowBalance marks a resource paused because the
	// owner's balance fell below the minimum threshold.
	ResourceStatusPausedLowBalance = "paused_low_balance"
	// ResourceStatusStopped marks a resource stopped by its owner.
	ResourceStatusStopped = "stopped"
)

// MeteredResource registers an infrastructure resource whose usage the
// orchestrator bills on a schedule.
type MeteredResource struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user.
	User   *User  `gorm:"foreignKey:UserID"` // User relation.

	Type       string `gorm:"type:text;not null;index"`       // Resource type.
	ExternalID string `gorm:"type:text;not null;uniqueIndex"` // Provider-side identifier.
	Name       string `gorm:"type:text"`                      // Display name.

	Status string `gorm:"type:text;not null;default:'active';index"` // Lifecycle status.

	// SizeGB drives per-GB billing for storage and deployment resources.
	SizeGB decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"`

	LastBilledAt *time.Time `gorm:"index"` // End of the last billed window.
	PausedAt     *time.Time // When the resource was paused, if it is.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
