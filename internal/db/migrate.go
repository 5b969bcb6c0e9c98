package db

import (
	"fmt"

	"github.com/craft-platform/craft-metering/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations for all metering models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.BalanceTransaction{},
		&models.MeteredResource{},
		&models.AIUsageRecord{},
		&models.Setting{},
		&models.Admin{},
	)
}
