// Package metering drives scheduled billing: it scans active resources,
// prices elapsed usage windows, debits the ledger, and reacts when a
// balance crosses the pause or warning thresholds. It also expires
// time-limited purchased credits.
package metering

import (
	"context"
	"errors"
	"time"

	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/craft-platform/craft-metering/internal/notify"
	internalsettings "github.com/craft-platform/craft-metering/internal/settings"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SweepError records one failed item inside an otherwise successful run.
type SweepError struct {
	Ref     string `json:"ref"`     // Resource or transaction reference.
	Message string `json:"message"` // Error text.
}

// Report summarizes one sweep run. A run with partial errors is still a
// successful run; callers report it with HTTP 200.
type Report struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Errors    []SweepError `json:"errors"`
}

// ErrorCount returns the number of per-item failures.
func (r Report) ErrorCount() int { return len(r.Errors) }

func (r *Report) addError(ref string, err error) {
	r.Errors = append(r.Errors, SweepError{Ref: ref, Message: err.Error()})
}

// Orchestrator coordinates the metering and expiration sweeps.
type Orchestrator struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	pauser   Pauser
	notifier notify.Notifier

	// now is swappable for tests.
	now func() time.Time
}

// New wires an Orchestrator. pauser and notifier fall back to no-op and
// log implementations when nil.
func New(db *gorm.DB, lgr *ledger.Ledger, pauser Pauser, notifier notify.Notifier) *Orchestrator {
	if pauser == nil {
		pauser = NopPauser{}
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Orchestrator{
		db:       db,
		ledger:   lgr,
		pauser:   pauser,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// thresholds loads the balance floor and warning level from settings.
func (o *Orchestrator) thresholds() (minimum, warning decimal.Decimal) {
	minimum = internalsettings.Decimal(internalsettings.MinimumBalanceThresholdKey, internalsettings.DefaultMinimumBalanceThreshold)
	warning = internalsettings.Decimal(internalsettings.LowBalanceWarningThresholdKey, internalsettings.DefaultLowBalanceWarningThreshold)
	return minimum, warning
}

// sweepContext applies the configured wall-clock budget to one run.
func (o *Orchestrator) sweepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	seconds := internalsettings.Int(internalsettings.SweepDeadlineSecondsKey, internalsettings.DefaultSweepDeadlineSeconds)
	if seconds <= 0 {
		seconds = internalsettings.DefaultSweepDeadlineSeconds
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// checkBalanceBeforeBilling runs steps 2 and 3 of the per-resource billing
// pipeline: pause below the minimum threshold (and skip billing), warn
// once below the warning threshold, and clear the warning debounce when
// the balance has recovered.
//
// It returns true when billing should proceed.
func (o *Orchestrator) checkBalanceBeforeBilling(ctx context.Context, res *models.MeteredResource, user *models.User, minimum, warning decimal.Decimal) (bool, error) {
	if user.Balance.LessThan(minimum) {
		if errPause := o.pauseForLowBalance(ctx, res, user); errPause != nil {
			return false, errPause
		}
		return false, nil
	}

	if user.Balance.LessThan(warning) {
		if user.LowBalanceWarnedAt == nil {
			if errWarn := o.notifier.SendLowBalanceWarning(ctx, user.Email, user.Balance); errWarn != nil {
				log.WithError(errWarn).Warnf("metering: low balance warning failed user=%d", user.ID)
			} else {
				now := o.now()
				user.LowBalanceWarnedAt = &now
				if errUpdate := o.db.WithContext(ctx).
					Model(&models.User{}).
					Where("id = ?", user.ID).
					Update("low_balance_warned_at", now).Error; errUpdate != nil {
					return false, errUpdate
				}
			}
		}
	} else if user.LowBalanceWarnedAt != nil {
		// Balance recovered above the warning level; reset the debounce so
		// the next dip warns again.
		user.LowBalanceWarnedAt = nil
		if errUpdate := o.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("low_balance_warned_at", nil).Error; errUpdate != nil {
			return false, errUpdate
		}
	}

	return true, nil
}

// pauseForLowBalance invokes the external pause collaborator, flips the
// resource status, and sends the one-time paused notification. The status
// transition is the guard against repeat notifications.
func (o *Orchestrator) pauseForLowBalance(ctx context.Context, res *models.MeteredResource, user *models.User) error {
	if res.Status == models.ResourceStatusPausedLowBalance {
		return nil
	}

	if errPause := o.pauser.Pause(ctx, res); errPause != nil {
		return errPause
	}

	now := o.now()
	if errUpdate := o.db.WithContext(ctx).
		Model(&models.MeteredResource{}).
		Where("id = ?", res.ID).
		Updates(map[string]any{
			"status":     models.ResourceStatusPausedLowBalance,
			"paused_at":  now,
			"updated_at": now,
		}).Error; errUpdate != nil {
		return errUpdate
	}
	res.Status = models.ResourceStatusPausedLowBalance
	res.PausedAt = &now

	if errNotify := o.notifier.SendServicePaused(ctx, user.Email, res.Name, user.Balance); errNotify != nil {
		log.WithError(errNotify).Warnf("metering: paused notification failed user=%d resource=%s", user.ID, res.ExternalID)
	}
	return nil
}

// loadOwner fetches the resource owner's billing state.
func (o *Orchestrator) loadOwner(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := o.db.WithContext(ctx).Take(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrUserNotFound
		}
		return nil, errFind
	}
	return &user, nil
}
