package calc

import (
	"math"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestSessionRevenue(t *testing.T) {
	r := SessionRevenue(12, 85)
	nearlyEqual(t, "revenue", r.Revenue, 1020)
	if r.Sessions != 12 {
		t.Fatalf("Sessions = %d, want 12", r.Sessions)
	}
	nearlyEqual(t, "average", r.AveragePrice, 85)
}

func TestTotalAndAverageRevenue(t *testing.T) {
	lines := []SessionLine{{Sessions: 10, Price: 80}, {Sessions: 30, Price: 100}}
	nearlyEqual(t, "total", TotalRevenue(lines), 3800)
	nearlyEqual(t, "average", AveragePricePerSession(lines), 95)
	nearlyEqual(t, "empty average", AveragePricePerSession(nil), 0)
	nearlyEqual(t, "zero-session average", AveragePricePerSession([]SessionLine{{Sessions: 0, Price: 50}}), 0)
}

func TestRevenueGrowthRate(t *testing.T) {
	nearlyEqual(t, "growth", RevenueGrowthRate(110, 100), 10)
	nearlyEqual(t, "decline", RevenueGrowthRate(50, 100), -50)
	nearlyEqual(t, "from zero", RevenueGrowthRate(10, 0), 100)
	nearlyEqual(t, "both zero", RevenueGrowthRate(0, 0), 0)
}

func TestMargin(t *testing.T) {
	m := Margin(1000, 200, 300)
	nearlyEqual(t, "total cost", m.TotalCost, 500)
	nearlyEqual(t, "margin", m.Margin, 500)
	nearlyEqual(t, "margin percent", m.MarginPercent, 50)
	if !m.BreakEven {
		t.Fatal("BreakEven = false, want true")
	}

	loss := Margin(400, 200, 300)
	if loss.BreakEven {
		t.Fatal("BreakEven = true for a loss")
	}

	exact := Margin(500, 200, 300)
	if !exact.BreakEven {
		t.Fatal("BreakEven = false when revenue equals cost")
	}

	empty := Margin(0, 0, 100)
	nearlyEqual(t, "zero revenue percent", empty.MarginPercent, 0)
}

func TestContributionMargin(t *testing.T) {
	cm := ContributionMargin(80, 20)
	nearlyEqual(t, "margin", cm.Margin, 60)
	nearlyEqual(t, "percent", cm.MarginPercent, 75)

	free := ContributionMargin(0, 5)
	nearlyEqual(t, "zero price percent", free.MarginPercent, 0)
}

func TestBreakEvenSessions(t *testing.T) {
	nearlyEqual(t, "fractional", BreakEvenSessions(1000, 80), 12.5)
	if got := BreakEvenSessions(1000, 0); !math.IsInf(got, 1) {
		t.Fatalf("zero margin = %v, want +Inf", got)
	}
	if got := BreakEvenSessions(1000, -5); !math.IsInf(got, 1) {
		t.Fatalf("negative margin = %v, want +Inf", got)
	}
}

func TestSessionMetrics(t *testing.T) {
	m := SessionMetrics(100, 40)
	if m.Variance != -60 {
		t.Fatalf("Variance = %d, want -60", m.Variance)
	}
	nearlyEqual(t, "variance percent", m.VariancePercent, -60)
	nearlyEqual(t, "utilization", m.UtilizationRate, 40)

	none := SessionMetrics(0, 5)
	if none.Variance != 5 {
		t.Fatalf("Variance = %d, want 5", none.Variance)
	}
	nearlyEqual(t, "unplanned variance percent", none.VariancePercent, 0)
	nearlyEqual(t, "unplanned utilization", none.UtilizationRate, 0)
}
