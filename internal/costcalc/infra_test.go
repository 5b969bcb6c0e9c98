package costcalc

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestHourlyCostPartialWindow(t *testing.T) {
	cost, errCost := HourlyCost("infra/sandbox", 30)
	if errCost != nil {
		t.Fatalf("hourly cost: %v", errCost)
	}
	// Half an hour at $0.076/hr.
	mustEqual(t, cost, "0.038", "sandbox half hour")

	full, _ := HourlyCost("infra/sandbox", 60)
	mustEqual(t, full, "0.076", "sandbox full hour")

	zero, _ := HourlyCost("infra/sandbox", 0)
	if !zero.IsZero() {
		t.Fatalf("zero minutes should cost nothing, got %s", zero)
	}
}

func TestStorageDailyCost(t *testing.T) {
	cost, errCost := StorageDailyCost("infra/storage", decimal.NewFromInt(30))
	if errCost != nil {
		t.Fatalf("storage cost: %v", errCost)
	}
	// 30 GB at $0.125/GB-month over a 30-day month.
	mustEqual(t, cost, "0.125", "storage daily")
}

func TestGBHourCost(t *testing.T) {
	cost, errCost := GBHourCost("infra/deployment", decimal.NewFromInt(2), decimal.NewFromInt(24))
	if errCost != nil {
		t.Fatalf("deployment cost: %v", errCost)
	}
	// 2 GB x 24 h at $0.0052/GB-hour.
	mustEqual(t, cost, "0.2496", "deployment day")
}
