// Package ledger owns the account balance invariant: a user's balance
// always equals the sum of their balance transactions. Balances are
// mutated only here, inside a single database transaction that snapshots
// the balance before and after the write.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/craft-platform/craft-metering/internal/db"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger errors.
var (
	// ErrUserNotFound indicates the target user does not exist.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrInvalidAmount indicates a non-positive debit or credit amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// balanceScale matches the decimal(20,10) balance columns; amounts are
// rounded here once, never during cost itemization.
const balanceScale = 10

const (
	maxRetries   = 3
	retryBackoff = 50 * time.Millisecond
)

// Entry reports the outcome of a debit or credit.
type Entry struct {
	TransactionID uint64          // ID of the ledger row (existing row when Duplicate).
	BalanceBefore decimal.Decimal // Balance snapshot before the write.
	BalanceAfter  decimal.Decimal // Balance snapshot after the write.
	Duplicate     bool            // True when the idempotency key matched an existing row.
}

// Options carries the idempotency key and metadata bag for a ledger write.
type Options struct {
	// IdempotencyKey dedupes retried operations (checkout IDs, billing
	// window composites). Empty means the write is never deduped.
	IdempotencyKey string
	// Metadata is persisted on the transaction row for audit.
	Metadata map[string]any
}

// Ledger performs atomic balance mutations against the store.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger backed by GORM.
func New(db *gorm.DB) *Ledger { return &Ledger{db: db} }

// Debit subtracts amount from the user's balance. It does not fail on
// insufficient balance: usage cost is often known only after the call
// completes, so threshold enforcement belongs to the caller.
func (l *Ledger) Debit(ctx context.Context, userID uint64, amount decimal.Decimal, txType, description string, opts Options) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, amount.Neg(), txType, description, opts)
}

// Credit adds amount to the user's balance.
func (l *Ledger) Credit(ctx context.Context, userID uint64, amount decimal.Decimal, txType, description string, opts Options) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}
	return l.apply(ctx, userID, amount, txType, description, opts)
}

func (l *Ledger) apply(ctx context.Context, userID uint64, signed decimal.Decimal, txType, description string, opts Options) (Entry, error) {
	if l == nil || l.db == nil {
		return Entry{}, errors.New("ledger: nil ledger")
	}

	var entry Entry
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Entry{}, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
		lastErr = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			applied, errApply := ApplyTx(ctx, tx, userID, signed, txType, description, opts)
			if errApply != nil {
				return errApply
			}
			entry = applied
			return nil
		})
		if lastErr == nil {
			return entry, nil
		}
		if !isRetryable(lastErr) {
			return Entry{}, lastErr
		}
	}
	return Entry{}, fmt.Errorf("ledger: transaction retries exhausted: %w", lastErr)
}

// ApplyTx performs one signed balance mutation inside an existing
// transaction, for callers that compose the ledger write with other rows
// (usage audit records, expiration flags). The idempotency check runs
// inside the same transaction as the insert so a retried caller cannot
// race between check and write.
func ApplyTx(ctx context.Context, tx *gorm.DB, userID uint64, signed decimal.Decimal, txType, description string, opts Options) (Entry, error) {
	if tx == nil {
		return Entry{}, errors.New("ledger: nil tx")
	}
	if signed.IsZero() {
		return Entry{}, ErrInvalidAmount
	}
	signed = signed.Round(balanceScale)

	key := strings.TrimSpace(opts.IdempotencyKey)
	if key != "" {
		var existing models.BalanceTransaction
		errFind := tx.WithContext(ctx).
			Where("idempotency_key = ?", key).
			Take(&existing).Error
		if errFind == nil {
			return Entry{
				TransactionID: existing.ID,
				BalanceBefore: existing.BalanceBefore,
				BalanceAfter:  existing.BalanceAfter,
				Duplicate:     true,
			}, nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Entry{}, errFind
		}
	}

	var user models.User
	if errLock := dbutil.WithRowLock(tx.WithContext(ctx)).
		Take(&user, userID).Error; errLock != nil {
		if errors.Is(errLock, gorm.ErrRecordNotFound) {
			return Entry{}, ErrUserNotFound
		}
		return Entry{}, errLock
	}

	before := user.Balance
	after := before.Add(signed)

	if errUpdate := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"balance":    after,
			"updated_at": time.Now().UTC(),
		}).Error; errUpdate != nil {
		return Entry{}, errUpdate
	}

	row := models.BalanceTransaction{
		UserID:        user.ID,
		Type:          txType,
		Amount:        signed,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
	if key != "" {
		row.IdempotencyKey = &key
	}
	if len(opts.Metadata) > 0 {
		payload, errMarshal := json.Marshal(opts.Metadata)
		if errMarshal != nil {
			return Entry{}, fmt.Errorf("ledger: marshal metadata: %w", errMarshal)
		}
		row.Metadata = datatypes.JSON(payload)
	}
	if errCreate := tx.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return Entry{}, errCreate
	}

	return Entry{
		TransactionID: row.ID,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}

// Balance returns the current balance for a user.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if l == nil || l.db == nil {
		return decimal.Zero, errors.New("ledger: nil ledger")
	}
	var user models.User
	if errFind := l.db.WithContext(ctx).Select("id", "balance").Take(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, errFind
	}
	return user.Balance, nil
}

// SumTransactions recomputes a user's balance from the transaction log.
// Never used in the hot path; reconciliation and tests only.
func (l *Ledger) SumTransactions(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if l == nil || l.db == nil {
		return decimal.Zero, errors.New("ledger: nil ledger")
	}
	var rows []models.BalanceTransaction
	if errFind := l.db.WithContext(ctx).
		Select("amount").
		Where("user_id = ?", userID).
		Find(&rows).Error; errFind != nil {
		return decimal.Zero, errFind
	}
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Amount)
	}
	return sum, nil
}

// isRetryable matches transient transaction conflicts worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "could not serialize"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "busy"):
		return true
	default:
		return false
	}
}
