package metering

import (
	"context"
	"errors"
	"fmt"

	dbutil "github.com/craft-platform/craft-metering/internal/db"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	internalsettings "github.com/craft-platform/craft-metering/internal/settings"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunExpirationSweep forfeits the unspent portion of top-ups older than
// the configured lifetime. Each top-up is expired exactly once: the
// expired flag is part of the query filter, the forfeiture debit carries
// an idempotency key, and the flag is set in the same transaction as the
// debit.
func (o *Orchestrator) RunExpirationSweep(ctx context.Context) Report {
	ctx, cancel := o.sweepContext(ctx)
	defer cancel()

	var report Report
	expiryDays := internalsettings.Int(internalsettings.TopupExpiryDaysKey, internalsettings.DefaultTopupExpiryDays)
	if expiryDays <= 0 {
		expiryDays = internalsettings.DefaultTopupExpiryDays
	}
	cutoff := o.now().AddDate(0, 0, -expiryDays)

	var topups []models.BalanceTransaction
	if errFind := o.db.WithContext(ctx).
		Where("type = ? AND expired = ? AND created_at < ?",
			models.TransactionTypeTopup, false, cutoff).
		Order("id ASC").
		Find(&topups).Error; errFind != nil {
		report.addError("query", errFind)
		return report
	}

	for i := range topups {
		topup := &topups[i]
		if ctx.Err() != nil {
			report.Skipped = len(topups) - i
			log.Warnf("metering: expiration sweep deadline reached, skipped %d top-ups", report.Skipped)
			break
		}
		if errExpire := o.expireTopup(ctx, topup); errExpire != nil {
			log.WithError(errExpire).Warnf("metering: top-up expiration failed transaction=%d", topup.ID)
			report.addError(fmt.Sprintf("topup-%d", topup.ID), errExpire)
			continue
		}
		report.Processed++
	}
	return report
}

func (o *Orchestrator) expireTopup(ctx context.Context, topup *models.BalanceTransaction) error {
	now := o.now()
	var expiredAmount decimal.Decimal
	var email string

	errTx := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errLock := dbutil.WithRowLock(tx.WithContext(ctx)).
			Take(&user, topup.UserID).Error; errLock != nil {
			if errors.Is(errLock, gorm.ErrRecordNotFound) {
				return ledger.ErrUserNotFound
			}
			return errLock
		}
		email = user.Email

		// Never drive the balance negative through expiration: forfeit
		// only what is still unspent.
		available := user.Balance
		if available.IsNegative() {
			available = decimal.Zero
		}
		expiredAmount = decimal.Min(topup.Amount, available)

		if expiredAmount.IsPositive() {
			if _, errApply := ledger.ApplyTx(ctx, tx, user.ID, expiredAmount.Neg(),
				models.TransactionTypeCreditExpiration,
				fmt.Sprintf("expired unused top-up credits (top-up #%d)", topup.ID),
				ledger.Options{
					IdempotencyKey: fmt.Sprintf("expire-topup:%d", topup.ID),
					Metadata: map[string]any{
						"origin_topup_id": topup.ID,
					},
				}); errApply != nil {
				return errApply
			}
		}

		return tx.WithContext(ctx).
			Model(&models.BalanceTransaction{}).
			Where("id = ? AND expired = ?", topup.ID, false).
			Updates(map[string]any{
				"expired":        true,
				"expired_amount": expiredAmount,
				"expired_at":     now,
			}).Error
	})
	if errTx != nil {
		return errTx
	}

	if expiredAmount.IsPositive() {
		if errNotify := o.notifier.SendTokenExpiryNotice(ctx, email, expiredAmount); errNotify != nil {
			log.WithError(errNotify).Warnf("metering: expiry notice failed transaction=%d", topup.ID)
		}
	}
	return nil
}
