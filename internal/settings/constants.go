package settings

// DB config keys and defaults for metering settings.
const (
	// MinimumBalanceThresholdKey sets the balance floor below which services pause.
	MinimumBalanceThresholdKey = "MINIMUM_BALANCE_THRESHOLD"
	// LowBalanceWarningThresholdKey sets the balance below which a warning email fires.
	LowBalanceWarningThresholdKey = "LOW_BALANCE_WARNING_THRESHOLD"
	// SweepDeadlineSecondsKey bounds the wall-clock budget of one sweep run.
	SweepDeadlineSecondsKey = "SWEEP_DEADLINE_SECONDS"
	// TopupExpiryDaysKey sets the lifetime of purchased credits in days.
	TopupExpiryDaysKey = "TOPUP_EXPIRY_DAYS"

	// DefaultMinimumBalanceThreshold is the fallback pause floor in USD.
	DefaultMinimumBalanceThreshold = "0.10"
	// DefaultLowBalanceWarningThreshold is the fallback warning level in USD.
	DefaultLowBalanceWarningThreshold = "5.00"
	// DefaultSweepDeadlineSeconds is the fallback sweep budget (seconds).
	DefaultSweepDeadlineSeconds = 600
	// DefaultTopupExpiryDays is the fallback credit lifetime in days.
	DefaultTopupExpiryDays = 365
)
