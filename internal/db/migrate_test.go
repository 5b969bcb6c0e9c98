package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesMeteringTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{
		"users",
		"balance_transactions",
		"metered_resources",
		"ai_usage_records",
		"settings",
		"admins",
	} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}

	for _, column := range []string{"idempotency_key", "expired", "expired_amount", "expired_at"} {
		if !conn.Migrator().HasColumn("balance_transactions", column) {
			t.Fatalf("balance_transactions missing column %s", column)
		}
	}
}

func TestWithRowLockSkipsSQLite(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	locked := WithRowLock(conn)
	if locked != conn {
		t.Fatal("sqlite connections must not gain a locking clause")
	}
}

func TestJSONExtractTextExpr(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	expr := JSONExtractTextExpr(conn, "metadata", "checkout_id")
	if expr != "json_extract(metadata, '$.checkout_id')" {
		t.Fatalf("unexpected expr %s", expr)
	}
}
