package calc

import (
	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/model"
)

// Margin compares revenue with variable plus fixed cost.
func Margin(revenue, variableCost, fixedCost float64) model.MarginResult {
	totalCost := variableCost + fixedCost
	margin := revenue - totalCost

	var pct float64
	if revenue != 0 {
		pct = margin / revenue * 100
	}

	return model.MarginResult{
		Revenue:       revenue,
		TotalCost:     totalCost,
		Margin:        margin,
		MarginPercent: pct,
		BreakEven:     revenue >= totalCost,
	}
}

// ContributionMargin is price minus variable cost per session.
func ContributionMargin(price, variableCost float64) model.ContributionMargin {
	margin := price - variableCost

	var pct float64
	if price != 0 {
		pct = margin / price * 100
	}

	return model.ContributionMargin{
		PricePerSession:        price,
		VariableCostPerSession: variableCost,
		Margin:                 margin,
		MarginPercent:          pct,
	}
}

// BreakEvenSessions is the fee-agnostic, fractional session count needed for
// marginPerSession to cover fixedCost. It is +Inf when the margin is not
// positive. Use fees.BreakEvenUnits for the fee-aware whole-session count.
func BreakEvenSessions(fixedCost, marginPerSession float64) float64 {
	return fees.UnitsToCover(fixedCost, marginPerSession)
}
