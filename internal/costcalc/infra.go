package costcalc

import (
	"github.com/craft-platform/craft-metering/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	minutesPerHour = decimal.NewFromInt(60)
	daysPerMonth   = decimal.NewFromInt(30)
)

// HourlyCost prices a partial-hour compute window (sandboxes, databases).
// activeMinutes is expected to be capped at 60 by the caller.
func HourlyCost(resourceID string, activeMinutes int64) (decimal.Decimal, error) {
	entry, errGet := pricing.Get(resourceID)
	if errGet != nil {
		return decimal.Zero, errGet
	}
	if activeMinutes <= 0 {
		return decimal.Zero, nil
	}
	return entry.HourlyRate.Mul(decimal.NewFromInt(activeMinutes)).Div(minutesPerHour), nil
}

// StorageDailyCost prices one day of stored data as a flat daily fraction
// of the monthly per-GB rate.
func StorageDailyCost(resourceID string, sizeGB decimal.Decimal) (decimal.Decimal, error) {
	entry, errGet := pricing.Get(resourceID)
	if errGet != nil {
		return decimal.Zero, errGet
	}
	if sizeGB.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return entry.GBMonthRate.Div(daysPerMonth).Mul(sizeGB), nil
}

// GBHourCost prices runtime memory usage (deployments) per GB-hour.
func GBHourCost(resourceID string, sizeGB decimal.Decimal, hours decimal.Decimal) (decimal.Decimal, error) {
	entry, errGet := pricing.Get(resourceID)
	if errGet != nil {
		return decimal.Zero, errGet
	}
	if sizeGB.Sign() <= 0 || hours.Sign() <= 0 {
		return decimal.Zero, nil
	}
	return entry.GBHourRate.Mul(sizeGB).Mul(hours), nil
}
