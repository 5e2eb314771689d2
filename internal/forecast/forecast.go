// Package forecast projects monthly revenue with an ordinary least-squares
// trend and derives break-even, trend and risk signals from the projection.
package forecast

import (
	"math"
	"time"

	"github.com/theirongolddev/praxis/internal/calc"
	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/model"
)

// DefaultMonthsAhead is the forecast horizon used when Options leaves it unset.
const DefaultMonthsAhead = 6

const (
	monthLayout        = "2006-01"
	neutralConfidence  = 0.5
	maxConfidence      = 0.95
	confidencePerPoint = 0.05
	confidenceDecay    = 0.95
	defaultVolatility  = 0.1
)

// Options controls a forecast run.
type Options struct {
	MonthsAhead int
	// Now anchors month labels when the history carries none.
	Now time.Time
}

func (o Options) withDefaults() Options {
	if o.MonthsAhead <= 0 {
		o.MonthsAhead = DefaultMonthsAhead
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Calculate projects history forward opts.MonthsAhead months.
// With fewer than two historical points it returns neutral zero-revenue points.
func Calculate(history []model.MonthlyRevenue, opts Options) []model.ForecastDataPoint {
	opts = opts.withDefaults()
	anchor := anchorMonth(history, opts.Now)
	points := make([]model.ForecastDataPoint, 0, opts.MonthsAhead)

	n := len(history)
	if n < 2 {
		for i := 1; i <= opts.MonthsAhead; i++ {
			points = append(points, model.ForecastDataPoint{
				Month:      anchor.AddDate(0, i, 0).Format(monthLayout),
				Confidence: neutralConfidence,
			})
		}
		return points
	}

	values := revenues(history)
	slope, intercept := linearRegression(values)
	vol := Volatility(values)
	base := math.Min(maxConfidence, neutralConfidence+float64(n)*confidencePerPoint)

	for i := 1; i <= opts.MonthsAhead; i++ {
		value := math.Max(0, slope*float64(n+i-1)+intercept)
		conf := base * math.Pow(confidenceDecay, float64(i-1))
		spread := vol * (2 - conf)

		points = append(points, model.ForecastDataPoint{
			Month:             anchor.AddDate(0, i, 0).Format(monthLayout),
			ForecastedRevenue: value,
			Confidence:        conf,
			UpperBound:        math.Max(0, value*(1+spread)),
			LowerBound:        math.Max(0, value*(1-spread)),
		})
	}
	return points
}

// anchorMonth is the last historical month, falling back to now.
func anchorMonth(history []model.MonthlyRevenue, now time.Time) time.Time {
	if len(history) > 0 {
		if t, err := time.Parse(monthLayout, history[len(history)-1].Month); err == nil {
			return t
		}
	}
	return model.MonthStart(now)
}

func revenues(history []model.MonthlyRevenue) []float64 {
	values := make([]float64, len(history))
	for i, h := range history {
		values[i] = h.Revenue
	}
	return values
}

// linearRegression fits y = slope*x + intercept over x = 0..n-1.
func linearRegression(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	if n == 0 {
		return 0, 0
	}

	var sumX, sumY float64
	for i, y := range ys {
		sumX += float64(i)
		sumY += y
	}
	meanX, meanY := sumX/n, sumY/n

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, meanY
	}
	slope = num / den
	return slope, meanY - slope*meanX
}

// Volatility is the coefficient of variation (population stddev / mean) of values.
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return defaultVolatility
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq/float64(len(values))) / mean
}

// BreakEvenMonth returns the first point whose fee-net revenue covers fixedCosts.
func BreakEvenMonth(points []model.ForecastDataPoint, fixedCosts, feePct float64) (model.ForecastDataPoint, bool) {
	for _, p := range points {
		if fees.Net(p.ForecastedRevenue, feePct) >= fixedCosts {
			return p, true
		}
	}
	return model.ForecastDataPoint{}, false
}

// RevenueTrend is the month-over-month percent change between the two latest points.
func RevenueTrend(history []model.MonthlyRevenue) float64 {
	n := len(history)
	if n < 2 {
		return 0
	}
	return calc.RevenueGrowthRate(history[n-1].Revenue, history[n-2].Revenue)
}

// TrendChange marks a month where the growth rate swung sharply.
type TrendChange struct {
	Index  int     `json:"index"`
	Month  string  `json:"month"`
	Before float64 `json:"before"` // growth into the month, percent
	After  float64 `json:"after"`  // growth out of the month, percent
	Delta  float64 `json:"delta"`
}

const trendChangeThreshold = 20.0

// TrendChanges flags months where the growth rate into and out of the month
// differ by more than 20 percentage points.
func TrendChanges(history []model.MonthlyRevenue) []TrendChange {
	var changes []TrendChange
	for i := 1; i+1 < len(history); i++ {
		before := calc.RevenueGrowthRate(history[i].Revenue, history[i-1].Revenue)
		after := calc.RevenueGrowthRate(history[i+1].Revenue, history[i].Revenue)
		if delta := after - before; math.Abs(delta) > trendChangeThreshold {
			changes = append(changes, TrendChange{
				Index:  i,
				Month:  history[i].Month,
				Before: before,
				After:  after,
				Delta:  delta,
			})
		}
	}
	return changes
}

// RiskLevel grades how likely the forecast misses the plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk summarizes forecast months whose pessimistic net revenue misses the plan.
type Risk struct {
	Level        RiskLevel `json:"level"`
	MonthsAtRisk int       `json:"months_at_risk"`
	TotalMonths  int       `json:"total_months"`
}

const riskPlanShare = 0.8

// AssessRisk counts months whose net lower bound falls below 80% of net plannedRevenue.
func AssessRisk(points []model.ForecastDataPoint, plannedRevenue, feePct float64) Risk {
	r := Risk{Level: RiskLow, TotalMonths: len(points)}
	floor := riskPlanShare * fees.Net(plannedRevenue, feePct)
	for _, p := range points {
		if fees.Net(p.LowerBound, feePct) < floor {
			r.MonthsAtRisk++
		}
	}

	switch {
	case r.TotalMonths == 0 || r.MonthsAtRisk == 0:
		r.Level = RiskLow
	case r.MonthsAtRisk*2 >= r.TotalMonths:
		r.Level = RiskHigh
	default:
		r.Level = RiskMedium
	}
	return r
}
