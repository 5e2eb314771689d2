package model

// AlertType classifies a variance alert.
type AlertType string

const (
	AlertRevenueBelowPlan     AlertType = "REVENUE_BELOW_PLAN"
	AlertRevenueAbovePlan     AlertType = "REVENUE_ABOVE_PLAN"
	AlertExpenseOverrun       AlertType = "EXPENSE_OVERRUN"
	AlertTherapyUnderutilized AlertType = "THERAPY_UNDERUTILIZED"
	AlertTherapyOpportunity   AlertType = "THERAPY_OPPORTUNITY"
)

// Severity orders alerts by urgency.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns 0 for the most urgent severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// VarianceAlert is a flagged deviation between actual and expected metrics.
type VarianceAlert struct {
	ID              string    `json:"id"`
	Type            AlertType `json:"type"`
	Severity        Severity  `json:"severity"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Metric          string    `json:"metric"`
	CurrentValue    float64   `json:"current_value"`
	ExpectedValue   float64   `json:"expected_value"`
	Variance        float64   `json:"variance"`
	VariancePercent float64   `json:"variance_percent"`
	ActionItems     []string  `json:"action_items"`
}

// TherapyComparison is one therapy's side of a comparison.
type TherapyComparison struct {
	TherapyID string  `json:"therapy_id"`
	Name      string  `json:"name"`
	Sessions  int     `json:"sessions"`
	Revenue   float64 `json:"revenue"`
}

// MetricsComparison is one side (actual or expected) of a variance check.
type MetricsComparison struct {
	Revenue   float64             `json:"revenue"`
	Expenses  float64             `json:"expenses"`
	Sessions  int                 `json:"sessions"`
	Therapies []TherapyComparison `json:"therapies"`
}
