package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/craft-platform/craft-metering/internal/costcalc"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const maxBillableMinutesPerHour = 60

var hoursPerDay = decimal.NewFromInt(24)

// RunHourlySweep bills compute-style resources (sandboxes, databases) for
// the minutes they were active since their last billed window, capped at
// one hour. Per-resource failures are isolated: one broken resource never
// aborts the rest of the run.
func (o *Orchestrator) RunHourlySweep(ctx context.Context) Report {
	ctx, cancel := o.sweepContext(ctx)
	defer cancel()

	var report Report
	minimum, warning := o.thresholds()

	var resources []models.MeteredResource
	if errFind := o.db.WithContext(ctx).
		Where("status = ? AND type IN ?", models.ResourceStatusActive,
			[]string{models.ResourceTypeSandbox, models.ResourceTypeDatabase}).
		Order("id ASC").
		Find(&resources).Error; errFind != nil {
		report.addError("query", errFind)
		return report
	}

	windowStart := o.now().Truncate(time.Hour)
	for i := range resources {
		res := &resources[i]
		if ctx.Err() != nil {
			report.Skipped = len(resources) - i
			log.Warnf("metering: hourly sweep deadline reached, skipped %d resources", report.Skipped)
			break
		}
		if errBill := o.billComputeResource(ctx, res, windowStart, minimum, warning); errBill != nil {
			log.WithError(errBill).Warnf("metering: hourly billing failed resource=%s", res.ExternalID)
			report.addError(res.ExternalID, errBill)
			continue
		}
		report.Processed++
	}
	return report
}

// RunDailySweep bills storage and deployment runtime once per day.
func (o *Orchestrator) RunDailySweep(ctx context.Context) Report {
	ctx, cancel := o.sweepContext(ctx)
	defer cancel()

	var report Report
	minimum, warning := o.thresholds()

	var resources []models.MeteredResource
	if errFind := o.db.WithContext(ctx).
		Where("status = ? AND type IN ?", models.ResourceStatusActive,
			[]string{models.ResourceTypeStorage, models.ResourceTypeDeployment}).
		Order("id ASC").
		Find(&resources).Error; errFind != nil {
		report.addError("query", errFind)
		return report
	}

	day := o.now().Format("2006-01-02")
	for i := range resources {
		res := &resources[i]
		if ctx.Err() != nil {
			report.Skipped = len(resources) - i
			log.Warnf("metering: daily sweep deadline reached, skipped %d resources", report.Skipped)
			break
		}
		if errBill := o.billDailyResource(ctx, res, day, minimum, warning); errBill != nil {
			log.WithError(errBill).Warnf("metering: daily billing failed resource=%s", res.ExternalID)
			report.addError(res.ExternalID, errBill)
			continue
		}
		report.Processed++
	}
	return report
}

func (o *Orchestrator) billComputeResource(ctx context.Context, res *models.MeteredResource, windowStart time.Time, minimum, warning decimal.Decimal) error {
	user, errOwner := o.loadOwner(ctx, res.UserID)
	if errOwner != nil {
		return errOwner
	}

	proceed, errCheck := o.checkBalanceBeforeBilling(ctx, res, user, minimum, warning)
	if errCheck != nil {
		return errCheck
	}
	if !proceed {
		// Paused this cycle; a paused resource is not charged.
		return nil
	}

	now := o.now()
	minutes := o.activeMinutes(res, now)
	if minutes <= 0 {
		return nil
	}

	cost, errCost := costcalc.HourlyCost("infra/"+res.Type, minutes)
	if errCost != nil {
		return errCost
	}
	if !cost.IsPositive() {
		return o.touchLastBilled(ctx, res, now)
	}

	entry, errDebit := o.ledger.Debit(ctx, user.ID, cost,
		models.TransactionTypeInfraUsage,
		fmt.Sprintf("%s usage (%d min)", res.Type, minutes),
		ledger.Options{
			IdempotencyKey: fmt.Sprintf("infra:%s:%s:%d", res.Type, res.ExternalID, windowStart.Unix()),
			Metadata: map[string]any{
				"resource_id":    res.ExternalID,
				"resource_type":  res.Type,
				"window_start":   windowStart.Format(time.RFC3339),
				"active_minutes": minutes,
			},
		})
	if errDebit != nil {
		return errDebit
	}
	if entry.Duplicate {
		// This window was already billed by an earlier run.
		return nil
	}
	if errTouch := o.touchLastBilled(ctx, res, now); errTouch != nil {
		return errTouch
	}

	// Billing can push a user below the floor; react now, not next cycle.
	if entry.BalanceAfter.LessThan(minimum) {
		user.Balance = entry.BalanceAfter
		return o.pauseForLowBalance(ctx, res, user)
	}
	return nil
}

func (o *Orchestrator) billDailyResource(ctx context.Context, res *models.MeteredResource, day string, minimum, warning decimal.Decimal) error {
	user, errOwner := o.loadOwner(ctx, res.UserID)
	if errOwner != nil {
		return errOwner
	}

	proceed, errCheck := o.checkBalanceBeforeBilling(ctx, res, user, minimum, warning)
	if errCheck != nil {
		return errCheck
	}
	if !proceed {
		return nil
	}

	var cost decimal.Decimal
	var description string
	var errCost error
	switch res.Type {
	case models.ResourceTypeStorage:
		cost, errCost = costcalc.StorageDailyCost("infra/storage", res.SizeGB)
		description = fmt.Sprintf("storage usage (%s GB-day)", res.SizeGB.StringFixed(2))
	case models.ResourceTypeDeployment:
		cost, errCost = costcalc.GBHourCost("infra/deployment", res.SizeGB, hoursPerDay)
		description = fmt.Sprintf("deployment runtime (%s GB x 24h)", res.SizeGB.StringFixed(2))
	default:
		return fmt.Errorf("metering: unexpected daily resource type %s", res.Type)
	}
	if errCost != nil {
		return errCost
	}

	now := o.now()
	if !cost.IsPositive() {
		return o.touchLastBilled(ctx, res, now)
	}

	entry, errDebit := o.ledger.Debit(ctx, user.ID, cost,
		models.TransactionTypeInfraUsage,
		description,
		ledger.Options{
			IdempotencyKey: fmt.Sprintf("infra:%s:%s:%s", res.Type, res.ExternalID, day),
			Metadata: map[string]any{
				"resource_id":   res.ExternalID,
				"resource_type": res.Type,
				"billing_day":   day,
				"size_gb":       res.SizeGB.String(),
			},
		})
	if errDebit != nil {
		return errDebit
	}
	if entry.Duplicate {
		return nil
	}
	if errTouch := o.touchLastBilled(ctx, res, now); errTouch != nil {
		return errTouch
	}

	if entry.BalanceAfter.LessThan(minimum) {
		user.Balance = entry.BalanceAfter
		return o.pauseForLowBalance(ctx, res, user)
	}
	return nil
}

// activeMinutes computes how long a compute resource has run since its
// last billed window, capped at a full hour of partial-hour billing.
func (o *Orchestrator) activeMinutes(res *models.MeteredResource, now time.Time) int64 {
	start := res.CreatedAt
	if res.LastBilledAt != nil && res.LastBilledAt.After(start) {
		start = *res.LastBilledAt
	}
	if !now.After(start) {
		return 0
	}
	minutes := int64(now.Sub(start).Minutes())
	if minutes > maxBillableMinutesPerHour {
		minutes = maxBillableMinutesPerHour
	}
	return minutes
}

func (o *Orchestrator) touchLastBilled(ctx context.Context, res *models.MeteredResource, now time.Time) error {
	if errUpdate := o.db.WithContext(ctx).
		Model(&models.MeteredResource{}).
		Where("id = ?", res.ID).
		Updates(map[string]any{
			"last_billed_at": now,
			"updated_at":     now,
		}).Error; errUpdate != nil {
		return errUpdate
	}
	res.LastBilledAt = &now
	return nil
}
