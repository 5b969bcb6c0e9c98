package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// snapshot holds the in-memory DB config values.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// globalSnapshot stores the latest snapshot atomically.
var globalSnapshot atomic.Value // stores snapshot

func init() {
	globalSnapshot.Store(snapshot{values: map[string]json.RawMessage{}})
}

// Refresh reloads all settings from the database and replaces the
// in-memory snapshot. Required at process startup; until then typed
// getters return their defaults.
func Refresh(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := conn.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		copied := make([]byte, len(row.Value))
		copy(copied, row.Value)
		values[key] = copied
		if row.UpdatedAt.UTC().After(maxUpdatedAt) {
			maxUpdatedAt = row.UpdatedAt.UTC()
		}
	}

	globalSnapshot.Store(snapshot{updatedAt: maxUpdatedAt, values: values})
	return nil
}

// Value returns a copy of the raw config value for a key.
func Value(key string) (json.RawMessage, bool) {
	cfg := load()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := cfg.values[key]
	if !ok {
		return nil, false
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// UpdatedAt returns the last update timestamp across all settings rows.
func UpdatedAt() time.Time {
	return load().updatedAt
}

// Decimal returns the decimal value for key, or def when the key is
// missing or unparseable. Accepts JSON numbers and numeric strings.
func Decimal(key string, def string) decimal.Decimal {
	fallback, errDef := decimal.NewFromString(def)
	if errDef != nil {
		fallback = decimal.Zero
	}
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	if parsed, okParse := parseDecimal(raw); okParse {
		return parsed
	}
	return fallback
}

// Int returns the integer value for key, or def when missing or invalid.
func Int(key string, def int) int {
	raw, ok := Value(key)
	if !ok {
		return def
	}
	if parsed, okParse := parseInt(raw); okParse {
		return parsed
	}
	return def
}

func load() snapshot {
	v := globalSnapshot.Load()
	cfg, ok := v.(snapshot)
	if !ok || cfg.values == nil {
		return snapshot{values: map[string]json.RawMessage{}}
	}
	return cfg
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if errUnmarshal := json.Unmarshal([]byte(trimmed), &s); errUnmarshal != nil {
			return decimal.Zero, false
		}
		trimmed = strings.TrimSpace(s)
	}
	parsed, errParse := decimal.NewFromString(trimmed)
	if errParse != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

func parseInt(raw json.RawMessage) (int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return 0, false
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if errUnmarshal := json.Unmarshal([]byte(trimmed), &s); errUnmarshal != nil {
			return 0, false
		}
		trimmed = strings.TrimSpace(s)
	}
	parsed, errParse := strconv.Atoi(trimmed)
	if errParse != nil {
		return 0, false
	}
	return parsed, true
}
