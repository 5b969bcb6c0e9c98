package pricing

import "github.com/shopspring/decimal"

// TokensPerCredit fixes the internal display unit: 1 credit = 10,000 tokens.
// Credits are a plan-allocation UX concept and independent of dollar cost.
const TokensPerCredit = 10_000

var tokensPerCredit = decimal.NewFromInt(TokensPerCredit)

// TokensToCredits converts a raw token total to credits, rounded half-up
// to 2 decimal places.
func TokensToCredits(tokens int64) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokens).Div(tokensPerCredit).Round(2)
}

// CreditsToTokens converts credits back to tokens. The round trip through
// TokensToCredits is lossy within one hundredth of a credit (100 tokens).
func CreditsToTokens(credits decimal.Decimal) int64 {
	if credits.Sign() <= 0 {
		return 0
	}
	return credits.Mul(tokensPerCredit).Round(0).IntPart()
}

// PlanDailyCredits returns the daily credit grant for a plan tier.
// Unknown plans get the free allocation.
func PlanDailyCredits(plan string) decimal.Decimal {
	if grant, ok := planDailyCredits[plan]; ok {
		return grant
	}
	return planDailyCredits["free"]
}

var planDailyCredits = map[string]decimal.Decimal{
	"free":    decimal.NewFromInt(25),
	"starter": decimal.NewFromInt(100),
	"pro":     decimal.NewFromInt(250),
	"scale":   decimal.NewFromInt(1000),
}
