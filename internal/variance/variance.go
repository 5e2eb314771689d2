// Package variance flags deviations between actual and expected practice metrics.
package variance

import (
	"fmt"
	"math"
	"sort"

	"github.com/theirongolddev/praxis/internal/cli"
	"github.com/theirongolddev/praxis/internal/model"
)

// Thresholds in variance percent.
const (
	revenueCriticalBelow   = -15.0
	revenueWarningBelow    = -5.0
	revenueInfoAbove       = 20.0
	sessionsCriticalBelow  = -20.0
	expenseCriticalAbove   = 15.0
	therapyUnderusedBelow  = -30.0
	therapyOpportunityOver = 25.0
)

var actionItems = map[model.AlertType][]string{
	model.AlertRevenueBelowPlan: {
		"Review cancellations and no-shows for the period",
		"Follow up with clients who have open treatment plans",
		"Check whether session prices still cover costs",
	},
	model.AlertRevenueAbovePlan: {
		"Raise the plan to reflect the higher demand",
		"Check capacity before accepting more bookings",
	},
	model.AlertExpenseOverrun: {
		"Review one-off expenses booked this period",
		"Compare recurring contracts against alternatives",
		"Postpone non-essential purchases",
	},
	model.AlertTherapyUnderutilized: {
		"Promote this therapy to existing clients",
		"Check whether the time slots match client demand",
		"Consider adjusting the price",
	},
	model.AlertTherapyOpportunity: {
		"Add capacity for this therapy",
		"Consider a price increase for this therapy",
	},
}

// ActionItems returns the suggested remediation steps for an alert type.
func ActionItems(t model.AlertType) []string {
	items := actionItems[t]
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// Percent is the relative deviation of actual from expected, or 0 when nothing was expected.
func Percent(actual, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return (actual - expected) / expected * 100
}

// Detect compares actual against plan and returns alerts sorted by severity,
// then by the size of the deviation. A nil plan yields no alerts.
func Detect(actual model.MetricsComparison, plan *model.MetricsComparison) []model.VarianceAlert {
	alerts := []model.VarianceAlert{}
	if plan == nil {
		return alerts
	}

	if a, ok := revenueAlert(actual.Revenue, plan.Revenue); ok {
		alerts = append(alerts, a)
	}
	if a, ok := sessionsAlert(actual.Sessions, plan.Sessions); ok {
		alerts = append(alerts, a)
	}
	if a, ok := expenseAlert(actual.Expenses, plan.Expenses); ok {
		alerts = append(alerts, a)
	}
	alerts = append(alerts, therapyAlerts(actual.Therapies, plan.Therapies)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return math.Abs(alerts[i].VariancePercent) > math.Abs(alerts[j].VariancePercent)
	})
	return alerts
}

func newAlert(id string, t model.AlertType, sev model.Severity, metric string, current, expected float64) model.VarianceAlert {
	return model.VarianceAlert{
		ID:              id,
		Type:            t,
		Severity:        sev,
		Metric:          metric,
		CurrentValue:    current,
		ExpectedValue:   expected,
		Variance:        current - expected,
		VariancePercent: Percent(current, expected),
		ActionItems:     ActionItems(t),
	}
}

func revenueAlert(actual, expected float64) (model.VarianceAlert, bool) {
	pct := Percent(actual, expected)

	var a model.VarianceAlert
	switch {
	case pct < revenueCriticalBelow:
		a = newAlert("revenue-below-plan", model.AlertRevenueBelowPlan, model.SeverityCritical, "revenue", actual, expected)
		a.Title = "Revenue far below plan"
	case pct < revenueWarningBelow:
		a = newAlert("revenue-below-plan", model.AlertRevenueBelowPlan, model.SeverityWarning, "revenue", actual, expected)
		a.Title = "Revenue below plan"
	case pct > revenueInfoAbove:
		a = newAlert("revenue-above-plan", model.AlertRevenueAbovePlan, model.SeverityInfo, "revenue", actual, expected)
		a.Title = "Revenue above plan"
		a.Message = fmt.Sprintf("Net revenue of %s exceeds the expected %s by %s.",
			cli.FormatEuro(actual), cli.FormatEuro(expected), cli.FormatPercentage(pct))
		return a, true
	default:
		return a, false
	}
	a.Message = fmt.Sprintf("Net revenue of %s is %s below the expected %s.",
		cli.FormatEuro(actual), cli.FormatPercentage(math.Abs(pct)), cli.FormatEuro(expected))
	return a, true
}

func sessionsAlert(actual, expected int) (model.VarianceAlert, bool) {
	pct := Percent(float64(actual), float64(expected))
	if pct >= sessionsCriticalBelow {
		return model.VarianceAlert{}, false
	}
	a := newAlert("sessions-below-plan", model.AlertRevenueBelowPlan, model.SeverityCritical, "sessions",
		float64(actual), float64(expected))
	a.Title = "Sessions far below plan"
	a.Message = fmt.Sprintf("%d sessions held against %d expected (%s).",
		actual, expected, cli.FormatPercentage(pct))
	return a, true
}

func expenseAlert(actual, expected float64) (model.VarianceAlert, bool) {
	pct := Percent(actual, expected)
	if pct <= expenseCriticalAbove {
		return model.VarianceAlert{}, false
	}
	a := newAlert("expense-overrun", model.AlertExpenseOverrun, model.SeverityCritical, "expenses", actual, expected)
	a.Title = "Expenses over budget"
	a.Message = fmt.Sprintf("Expenses of %s exceed the budgeted %s by %s.",
		cli.FormatEuro(actual), cli.FormatEuro(expected), cli.FormatPercentage(pct))
	return a, true
}

func therapyAlerts(actual, plan []model.TherapyComparison) []model.VarianceAlert {
	expected := make(map[string]model.TherapyComparison, len(plan))
	for _, p := range plan {
		expected[p.TherapyID] = p
	}

	var alerts []model.VarianceAlert
	for _, a := range actual {
		p, ok := expected[a.TherapyID]
		if !ok {
			continue
		}
		pct := Percent(float64(a.Sessions), float64(p.Sessions))
		name := a.Name
		if name == "" {
			name = p.Name
		}

		switch {
		case pct < therapyUnderusedBelow && p.Sessions > 0 && a.Sessions > 0:
			alert := newAlert("therapy-underutilized-"+a.TherapyID, model.AlertTherapyUnderutilized,
				model.SeverityWarning, "therapy_sessions", float64(a.Sessions), float64(p.Sessions))
			alert.Title = name + " underutilized"
			alert.Message = fmt.Sprintf("%s: %d of %d expected sessions (%s), %s revenue.",
				name, a.Sessions, p.Sessions, cli.FormatPercentage(pct), cli.FormatEuro(a.Revenue))
			alerts = append(alerts, alert)
		case pct > therapyOpportunityOver:
			alert := newAlert("therapy-opportunity-"+a.TherapyID, model.AlertTherapyOpportunity,
				model.SeverityInfo, "therapy_sessions", float64(a.Sessions), float64(p.Sessions))
			alert.Title = name + " in high demand"
			alert.Message = fmt.Sprintf("%s: %d sessions against %d expected (+%s), %s revenue.",
				name, a.Sessions, p.Sessions, cli.FormatPercentage(pct), cli.FormatEuro(a.Revenue))
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Summary tallies alerts by severity.
type Summary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Summarize counts alerts by severity.
func Summarize(alerts []model.VarianceAlert) Summary {
	var s Summary
	for _, a := range alerts {
		switch a.Severity {
		case model.SeverityCritical:
			s.Critical++
		case model.SeverityWarning:
			s.Warning++
		default:
			s.Info++
		}
	}
	s.Total = len(alerts)
	return s
}

// HasCriticalIssues reports whether any alert is critical.
func HasCriticalIssues(alerts []model.VarianceAlert) bool {
	for _, a := range alerts {
		if a.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}
