// Package reconcile holds the pure arithmetic of closing a cash session:
// expected total, discrepancy and its classification. Nothing here touches storage.
package reconcile

import "github.com/shopspring/decimal"

// Places is the number of fractional digits money is kept at.
const Places = 2

// MaxAmount is the largest value a numeric(12,2) money column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// InRange reports whether d is a storable money amount: not negative and at most MaxAmount.
func InRange(d decimal.Decimal) bool {
	return !d.IsNegative() && Money(d).LessThanOrEqual(MaxAmount)
}

// Classification of a discrepancy by sign.
type Classification string

const (
	Surplus  Classification = "surplus"
	Shortage Classification = "shortage"
	Balanced Classification = "balanced"
)

// Grade of a discrepancy by its size relative to the expected total.
type Grade string

const (
	GradeNormal   Grade = "normal"
	GradeWarning  Grade = "warning"
	GradeCritical Grade = "critical"
)

// Thresholds are absolute percentages: |pct| <= Warning is normal,
// |pct| <= Critical is a warning, anything above is critical.
type Thresholds struct {
	Warning  decimal.Decimal
	Critical decimal.Decimal
}

// DefaultThresholds are 1% and 5%.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: decimal.NewFromInt(1), Critical: decimal.NewFromInt(5)}
}

var hundred = decimal.NewFromInt(100)

// Money rounds an amount to Places.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(Places) }

// ExpectedTotal = subtotal + serviceFee.
func ExpectedTotal(subtotal, serviceFee decimal.Decimal) decimal.Decimal {
	return Money(subtotal).Add(Money(serviceFee))
}

// Discrepancy = actualCash - expectedTotal. Positive means more cash than expected.
func Discrepancy(actualCash, expectedTotal decimal.Decimal) decimal.Decimal {
	return Money(actualCash).Sub(Money(expectedTotal))
}

// Classify maps the sign of a discrepancy to surplus / shortage / balanced.
func Classify(discrepancy decimal.Decimal) Classification {
	switch discrepancy.Sign() {
	case 1:
		return Surplus
	case -1:
		return Shortage
	default:
		return Balanced
	}
}

// Percentage returns discrepancy as a percentage of expectedTotal, rounded to 2 places.
// A zero expected total yields 0 for a zero discrepancy and ±100 otherwise.
func Percentage(discrepancy, expectedTotal decimal.Decimal) decimal.Decimal {
	if expectedTotal.IsZero() {
		switch discrepancy.Sign() {
		case 1:
			return hundred
		case -1:
			return hundred.Neg()
		default:
			return decimal.Zero
		}
	}
	return discrepancy.Div(expectedTotal).Mul(hundred).Round(Places)
}

// GradeOf grades an absolute percentage against t.
func GradeOf(pct decimal.Decimal, t Thresholds) Grade {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(t.Warning):
		return GradeNormal
	case abs.LessThanOrEqual(t.Critical):
		return GradeWarning
	default:
		return GradeCritical
	}
}

// Result bundles everything derived at close time.
type Result struct {
	ExpectedTotal  decimal.Decimal
	Discrepancy    decimal.Decimal
	Percentage     decimal.Decimal
	Classification Classification
	Grade          Grade
}

// Reconcile computes the full close-time result for one session.
func Reconcile(subtotal, serviceFee, actualCash decimal.Decimal, t Thresholds) Result {
	expected := ExpectedTotal(subtotal, serviceFee)
	diff := Discrepancy(actualCash, expected)
	pct := Percentage(diff, expected)
	return Result{
		ExpectedTotal:  expected,
		Discrepancy:    diff,
		Percentage:     pct,
		Classification: Classify(diff),
		Grade:          GradeOf(pct, t),
	}
}
