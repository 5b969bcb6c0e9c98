// Package usage ingests AI provider call reports: it prices the call,
// persists the audit record, and debits the ledger, all in one database
// transaction keyed by the caller's request ID.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/craft-platform/craft-metering/internal/costcalc"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/craft-platform/craft-metering/internal/pricing"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrMissingRequestID indicates the call had no idempotency key.
var ErrMissingRequestID = errors.New("usage: missing request id")

// AICall is one completed provider call reported by the API route glue.
type AICall struct {
	UserID      uint64               `json:"user_id"`
	Provider    string               `json:"provider"`
	Model       string               `json:"model"`
	RequestID   string               `json:"request_id"`
	Failed      bool                 `json:"failed"`
	RequestedAt time.Time            `json:"requested_at"`
	Usage       costcalc.UsageReport `json:"usage"`
	Modifiers   costcalc.Modifiers   `json:"modifiers"`
}

// Result reports what happened to one ingested call.
type Result struct {
	Priced       bool               `json:"priced"`
	Duplicate    bool               `json:"duplicate"`
	Cost         decimal.Decimal    `json:"cost"`
	Breakdown    costcalc.Breakdown `json:"breakdown"`
	BalanceAfter decimal.Decimal    `json:"balance_after"`
}

// Recorder persists usage records and applies billing deductions.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Record ingests one AI call. Unknown models are recorded unpriced at
// zero cost rather than rejected; failed provider calls are never billed.
// Replays of the same request ID are no-op successes.
func (r *Recorder) Record(ctx context.Context, call AICall) (Result, error) {
	if r == nil || r.db == nil {
		return Result{}, errors.New("usage: nil recorder")
	}
	requestID := strings.TrimSpace(call.RequestID)
	if requestID == "" {
		return Result{}, ErrMissingRequestID
	}

	provider := strings.TrimSpace(call.Provider)
	model := strings.TrimSpace(call.Model)
	resourceID := provider + "/" + model

	result := Result{}
	cost := decimal.Zero
	if !call.Failed {
		breakdown, errCalc := costcalc.Calculate(resourceID, call.Usage, call.Modifiers)
		switch {
		case errCalc == nil:
			result.Priced = true
			result.Breakdown = breakdown
			cost = breakdown.TotalCost
		case errors.Is(errCalc, pricing.ErrNotFound):
			// Unknown model: keep the audit trail, charge nothing. The
			// batch (and the user's request) must not fail on a catalog gap.
			log.Warnf("usage: no pricing for %s, recording unpriced", resourceID)
		default:
			return Result{}, errCalc
		}
	}
	result.Cost = cost

	row := models.AIUsageRecord{
		UserID:              call.UserID,
		Provider:            provider,
		Model:               model,
		RequestID:           requestID,
		InputTokens:         call.Usage.InputTokens,
		OutputTokens:        call.Usage.OutputTokens,
		ReasoningTokens:     call.Usage.ReasoningTokens,
		CacheCreationTokens: call.Usage.CacheCreationTokens,
		CacheReadTokens:     call.Usage.CacheReadTokens,
		AudioInputTokens:    call.Usage.AudioInputTokens,
		VideoInputTokens:    call.Usage.VideoInputTokens,
		ImageInputTokens:    call.Usage.ImageInputTokens,
		ImagesGenerated:     call.Usage.ImagesGenerated,
		Priced:              result.Priced,
		Cost:                cost,
		Failed:              call.Failed,
		RequestedAt:         normalizeTime(call.RequestedAt),
		CreatedAt:           time.Now().UTC(),
	}
	if len(call.Usage.ToolCalls) > 0 {
		payload, errMarshal := json.Marshal(call.Usage.ToolCalls)
		if errMarshal != nil {
			return Result{}, fmt.Errorf("usage: marshal tool calls: %w", errMarshal)
		}
		row.ToolCalls = datatypes.JSON(payload)
	}

	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AIUsageRecord
		errFind := tx.WithContext(ctx).
			Where("request_id = ?", requestID).
			Take(&existing).Error
		if errFind == nil {
			result.Duplicate = true
			result.Priced = existing.Priced
			result.Cost = existing.Cost
			return nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}

		if errCreate := tx.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return errCreate
		}

		if cost.IsPositive() {
			entry, errDebit := ledger.ApplyTx(ctx, tx, call.UserID, cost.Neg(),
				models.TransactionTypeAIUsage,
				fmt.Sprintf("%s %s usage", provider, model),
				ledger.Options{
					IdempotencyKey: "ai:" + requestID,
					Metadata: map[string]any{
						"provider":   provider,
						"model":      model,
						"request_id": requestID,
					},
				})
			if errDebit != nil {
				return errDebit
			}
			result.BalanceAfter = entry.BalanceAfter
		}
		return nil
	})
	if errTx != nil {
		return Result{}, errTx
	}
	return result, nil
}

// normalizeTime returns a UTC timestamp, defaulting to now if zero.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
