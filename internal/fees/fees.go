// Package fees models the flat percentage payment-processing fee and the
// break-even and growth projections that depend on fee-net revenue.
package fees

import (
	"math"

	"github.com/theirongolddev/praxis/internal/model"
)

const (
	// DefaultPercent is the processor fee charged on card and online payments.
	DefaultPercent = 1.39
	// DefaultMaxMonths bounds FindBreakEvenMonth.
	DefaultMaxMonths = 60
)

// Fee returns the processing fee charged on gross.
func Fee(gross, feePct float64) float64 {
	if gross == 0 {
		return 0
	}
	return gross * feePct / 100
}

// Net returns gross minus the processing fee.
func Net(gross, feePct float64) float64 {
	return gross - Fee(gross, feePct)
}

// NetContributionMargin is what one unit contributes after fee and variable cost.
// It is negative when a unit loses money.
func NetContributionMargin(price, variableCost, feePct float64) float64 {
	return Net(price, feePct) - variableCost
}

// UnitsToCover returns the fractional number of units needed for unitMargin to
// cover fixedCosts, or +Inf when the margin is not positive.
func UnitsToCover(fixedCosts, unitMargin float64) float64 {
	if unitMargin <= 0 {
		return math.Inf(1)
	}
	return fixedCosts / unitMargin
}

// BreakEvenUnits returns the smallest whole number of units n such that
// n * NetContributionMargin(price, variableCost, feePct) >= fixedCosts.
// It returns 0 when there is nothing to cover and +Inf when no finite count
// exists. feePct 0 gives the fee-agnostic variant.
func BreakEvenUnits(fixedCosts, price, variableCost, feePct float64) float64 {
	if fixedCosts <= 0 {
		return 0
	}
	if price <= 0 {
		return math.Inf(1)
	}
	margin := NetContributionMargin(price, variableCost, feePct)
	units := UnitsToCover(fixedCosts, margin)
	if math.IsInf(units, 1) {
		return units
	}

	n := math.Ceil(units)
	// ceil of a quotient can overshoot by one when the product is exact
	if n > 1 && (n-1)*margin >= fixedCosts {
		n--
	}
	return n
}

// MonthlyProfit is fee-net revenue minus fixed costs for one month.
func MonthlyProfit(grossRevenue, fixedCosts, feePct float64) float64 {
	return Net(grossRevenue, feePct) - fixedCosts
}

// ProjectedGross compounds startingGross by monthlyGrowthRate. Month 1 is the
// starting month and is returned unchanged.
func ProjectedGross(startingGross, monthlyGrowthRate float64, monthIndex int) float64 {
	if monthIndex <= 1 {
		return startingGross
	}
	return startingGross * math.Pow(1+monthlyGrowthRate, float64(monthIndex-1))
}

// CumulativeProfit sums MonthlyProfit over months 1..numMonths of a growing revenue.
func CumulativeProfit(startingGross, growthRate, fixedCosts float64, numMonths int, feePct float64) float64 {
	var total float64
	for m := 1; m <= numMonths; m++ {
		total += MonthlyProfit(ProjectedGross(startingGross, growthRate, m), fixedCosts, feePct)
	}
	return total
}

// FindBreakEvenMonth returns the first month in 1..maxMonths at which the
// running balance, starting at -initialInvestment, is no longer negative.
// It reports false when break-even is not reached within maxMonths. A
// non-positive maxMonths uses DefaultMaxMonths.
func FindBreakEvenMonth(initialInvestment, startingGross, growthRate, fixedCosts float64, maxMonths int, feePct float64) (int, bool) {
	if maxMonths <= 0 {
		maxMonths = DefaultMaxMonths
	}

	balance := -initialInvestment
	for m := 1; m <= maxMonths; m++ {
		balance += MonthlyProfit(ProjectedGross(startingGross, growthRate, m), fixedCosts, feePct)
		if balance >= 0 {
			return m, true
		}
	}
	return 0, false
}

// BreakdownPrice splits gross into fee and net.
func BreakdownPrice(gross, feePct float64) model.PriceBreakdown {
	fee := Fee(gross, feePct)
	return model.PriceBreakdown{
		Gross:      gross,
		FeePercent: feePct,
		FeeAmount:  fee,
		Net:        gross - fee,
	}
}

// BreakdownCost shows per-session price, fee, variable cost and what remains.
func BreakdownCost(price, variableCost, feePct float64) model.CostBreakdown {
	fee := Fee(price, feePct)
	return model.CostBreakdown{
		Price:        price,
		FeePercent:   feePct,
		FeeAmount:    fee,
		NetPrice:     price - fee,
		VariableCost: variableCost,
		TotalCost:    variableCost + fee,
		NetMargin:    price - fee - variableCost,
	}
}
