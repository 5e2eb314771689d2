package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/praxis/internal/model"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func series(values ...float64) []model.MonthlyRevenue {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.MonthlyRevenue, len(values))
	for i, v := range values {
		out[i] = model.MonthlyRevenue{Month: start.AddDate(0, i, 0).Format("2006-01"), Revenue: v}
	}
	return out
}

func TestCalculate_EmptyHistory(t *testing.T) {
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)
	points := Calculate(nil, Options{MonthsAhead: 6, Now: now})
	if len(points) != 6 {
		t.Fatalf("len(points) = %d, want 6", len(points))
	}
	for i, p := range points {
		if p.ForecastedRevenue != 0 || p.Confidence != 0.5 {
			t.Fatalf("point %d = %+v, want zero revenue and 0.5 confidence", i, p)
		}
	}
	if points[0].Month != "2026-11" || points[5].Month != "2027-04" {
		t.Fatalf("months %s..%s, want 2026-11..2027-04", points[0].Month, points[5].Month)
	}
}

func TestCalculate_DefaultHorizon(t *testing.T) {
	if got := len(Calculate(series(100), Options{})); got != DefaultMonthsAhead {
		t.Fatalf("len = %d, want %d", got, DefaultMonthsAhead)
	}
}

func TestCalculate_PerfectLine(t *testing.T) {
	points := Calculate(series(1000, 1100, 1200, 1300), Options{MonthsAhead: 3})

	nearlyEqual(t, "month 1", points[0].ForecastedRevenue, 1400)
	nearlyEqual(t, "month 2", points[1].ForecastedRevenue, 1500)
	nearlyEqual(t, "month 3", points[2].ForecastedRevenue, 1600)
	if points[0].Month != "2026-05" {
		t.Fatalf("first month = %s, want 2026-05", points[0].Month)
	}

	// base confidence 0.5 + 4*0.05
	nearlyEqual(t, "confidence 1", points[0].Confidence, 0.7)
	nearlyEqual(t, "confidence 2", points[1].Confidence, 0.7*0.95)

	vol := Volatility([]float64{1000, 1100, 1200, 1300})
	nearlyEqual(t, "upper", points[0].UpperBound, 1400*(1+vol*(2-0.7)))
	nearlyEqual(t, "lower", points[0].LowerBound, 1400*(1-vol*(2-0.7)))
}

func TestCalculate_ConfidenceDecays(t *testing.T) {
	points := Calculate(series(500, 900, 700, 1200, 800, 1500, 1100, 1300, 1700, 900, 2000, 1800), Options{MonthsAhead: 12})
	if points[0].Confidence != maxConfidence {
		t.Fatalf("first confidence = %v, want capped at %v", points[0].Confidence, maxConfidence)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Confidence > points[i-1].Confidence {
			t.Fatalf("confidence rose at %d: %v > %v", i, points[i].Confidence, points[i-1].Confidence)
		}
		if points[i].LowerBound < 0 || points[i].UpperBound < points[i].LowerBound {
			t.Fatalf("bad bounds at %d: %+v", i, points[i])
		}
	}
}

func TestCalculate_FloorsDecliningTrend(t *testing.T) {
	points := Calculate(series(3000, 2000, 1000), Options{MonthsAhead: 4})
	for i, p := range points {
		if p.ForecastedRevenue < 0 || p.LowerBound < 0 || p.UpperBound < 0 {
			t.Fatalf("point %d has negative values: %+v", i, p)
		}
	}
	nearlyEqual(t, "floored", points[1].ForecastedRevenue, 0)
}

func TestVolatility(t *testing.T) {
	nearlyEqual(t, "single", Volatility([]float64{100}), 0.1)
	nearlyEqual(t, "zero mean", Volatility([]float64{0, 0, 0}), 0)
	nearlyEqual(t, "flat", Volatility([]float64{50, 50}), 0)
	// mean 150, population stddev 50
	nearlyEqual(t, "spread", Volatility([]float64{100, 200}), 50.0/150)
}

func TestBreakEvenMonth(t *testing.T) {
	points := []model.ForecastDataPoint{
		{Month: "2026-11", ForecastedRevenue: 3000},
		{Month: "2026-12", ForecastedRevenue: 4050},
		{Month: "2027-01", ForecastedRevenue: 5000},
	}
	// net of 4050 at 1.39% is ~3993.7: not enough for 4000
	p, ok := BreakEvenMonth(points, 4000, 1.39)
	if !ok || p.Month != "2027-01" {
		t.Fatalf("BreakEvenMonth = %+v, %v; want 2027-01", p, ok)
	}
	p, ok = BreakEvenMonth(points, 4000, 0)
	if !ok || p.Month != "2026-12" {
		t.Fatalf("fee-free BreakEvenMonth = %+v, %v; want 2026-12", p, ok)
	}
	if _, ok := BreakEvenMonth(points, 10000, 1.39); ok {
		t.Fatal("BreakEvenMonth found a month above every forecast")
	}
}

func TestRevenueTrend(t *testing.T) {
	nearlyEqual(t, "growth", RevenueTrend(series(100, 200, 250)), 25)
	nearlyEqual(t, "from zero", RevenueTrend(series(0, 10)), 100)
	nearlyEqual(t, "both zero", RevenueTrend(series(0, 0)), 0)
	nearlyEqual(t, "too short", RevenueTrend(series(10)), 0)
}

func TestTrendChanges(t *testing.T) {
	// +10%, +10%, -50%, +10%
	changes := TrendChanges(series(1000, 1100, 1210, 605, 665.5))
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2: %+v", len(changes), changes)
	}
	if changes[0].Index != 2 || changes[0].Month != "2026-03" {
		t.Fatalf("first change = %+v, want index 2 (2026-03)", changes[0])
	}
	nearlyEqual(t, "delta", changes[0].Delta, -60)
	if changes[1].Index != 3 {
		t.Fatalf("second change index = %d, want 3", changes[1].Index)
	}
	if got := TrendChanges(series(100, 110)); len(got) != 0 {
		t.Fatalf("two points produced changes: %+v", got)
	}
}

func TestAssessRisk(t *testing.T) {
	points := []model.ForecastDataPoint{
		{LowerBound: 9000}, {LowerBound: 7000}, {LowerBound: 9500}, {LowerBound: 8500},
	}
	r := AssessRisk(points, 10000, 1.39)
	if r.MonthsAtRisk != 1 || r.Level != RiskMedium {
		t.Fatalf("AssessRisk = %+v, want 1 month at risk, medium", r)
	}

	high := AssessRisk(points, 12000, 1.39)
	if high.Level != RiskHigh {
		t.Fatalf("AssessRisk(12000) = %+v, want high", high)
	}

	low := AssessRisk(points, 5000, 1.39)
	if low.Level != RiskLow || low.MonthsAtRisk != 0 {
		t.Fatalf("AssessRisk(5000) = %+v, want low", low)
	}

	if empty := AssessRisk(nil, 1000, 1.39); empty.Level != RiskLow {
		t.Fatalf("empty forecast risk = %s, want low", empty.Level)
	}
}
