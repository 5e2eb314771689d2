package model

// SessionRevenue is the revenue earned by a number of sessions at one price.
type SessionRevenue struct {
	Revenue         float64 `json:"revenue"`
	Sessions        int     `json:"sessions"`
	PricePerSession float64 `json:"price_per_session"`
	AveragePrice    float64 `json:"average_price"`
}

// MarginResult compares revenue against total (variable + fixed) cost.
type MarginResult struct {
	Revenue       float64 `json:"revenue"`
	TotalCost     float64 `json:"total_cost"`
	Margin        float64 `json:"margin"`
	MarginPercent float64 `json:"margin_percent"`
	BreakEven     bool    `json:"break_even"`
}

// ContributionMargin is what one session contributes toward fixed costs.
type ContributionMargin struct {
	PricePerSession        float64 `json:"price_per_session"`
	VariableCostPerSession float64 `json:"variable_cost_per_session"`
	Margin                 float64 `json:"margin"`
	MarginPercent          float64 `json:"margin_percent"`
}

// SessionMetrics compares planned against actual sessions.
type SessionMetrics struct {
	Planned         int     `json:"planned"`
	Actual          int     `json:"actual"`
	Variance        int     `json:"variance"`
	VariancePercent float64 `json:"variance_percent"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// PriceBreakdown shows how a gross amount splits into fee and net.
type PriceBreakdown struct {
	Gross      float64 `json:"gross"`
	FeePercent float64 `json:"fee_percent"`
	FeeAmount  float64 `json:"fee_amount"`
	Net        float64 `json:"net"`
}

// CostBreakdown shows the full per-session cost picture including the payment fee.
type CostBreakdown struct {
	Price        float64 `json:"price"`
	FeePercent   float64 `json:"fee_percent"`
	FeeAmount    float64 `json:"fee_amount"`
	NetPrice     float64 `json:"net_price"`
	VariableCost float64 `json:"variable_cost"`
	TotalCost    float64 `json:"total_cost"` // variable cost + fee
	NetMargin    float64 `json:"net_margin"`
}

// ViabilityStatus buckets a viability score.
type ViabilityStatus string

const (
	StatusCritical ViabilityStatus = "critical"
	StatusCaution  ViabilityStatus = "caution"
	StatusHealthy  ViabilityStatus = "healthy"
)

// ViabilityScore is the weighted 0-100 health summary of the practice.
type ViabilityScore struct {
	Score              float64         `json:"score"`
	RevenueRatio       float64         `json:"revenue_ratio"`
	TherapyUtilization float64         `json:"therapy_utilization"`
	SessionUtilization float64         `json:"session_utilization"`
	ExpenseManagement  float64         `json:"expense_management"`
	Status             ViabilityStatus `json:"status"`
}

// MonthlyRevenue is one point of a historical revenue series.
type MonthlyRevenue struct {
	Month   string  `json:"month"` // YYYY-MM
	Revenue float64 `json:"revenue"`
}

// ForecastDataPoint is one projected month.
type ForecastDataPoint struct {
	Month             string  `json:"month"` // YYYY-MM
	ForecastedRevenue float64 `json:"forecasted_revenue"`
	Confidence        float64 `json:"confidence"`
	UpperBound        float64 `json:"upper_bound"`
	LowerBound        float64 `json:"lower_bound"`
}
