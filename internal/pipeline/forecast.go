package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/praxis/internal/forecast"
	"github.com/theirongolddev/praxis/internal/model"
)

// DefaultHistoryMonths is how many completed months feed a forecast by default.
const DefaultHistoryMonths = 12

// ForecastRequest configures Engine.Forecast. Zero counts and nil amounts fall
// back to defaults: FixedCosts to the average monthly expenses of the history
// window and PlannedRevenue to the planned gross revenue of At's month. A set
// amount is used as given, zero included.
type ForecastRequest struct {
	HistoryMonths  int       `json:"history_months"`
	MonthsAhead    int       `json:"months_ahead"`
	FixedCosts     *float64  `json:"fixed_costs,omitempty"`
	PlannedRevenue *float64  `json:"planned_revenue,omitempty"`
	At             time.Time `json:"at"`
}

// ForecastReport is the result of Engine.Forecast.
type ForecastReport struct {
	GeneratedAt    time.Time                 `json:"generated_at"`
	FeePercent     float64                   `json:"fee_percent"`
	FixedCosts     float64                   `json:"fixed_costs"`
	PlannedRevenue float64                   `json:"planned_revenue"`
	History        []model.MonthlyRevenue    `json:"history"`
	Points         []model.ForecastDataPoint `json:"points"`
	BreakEven      *model.ForecastDataPoint  `json:"break_even,omitempty"`
	Trend          float64                   `json:"trend_percent"`
	TrendChanges   []forecast.TrendChange    `json:"trend_changes"`
	Risk           forecast.Risk             `json:"risk"`
}

// Forecast builds the monthly gross revenue series of the completed months
// before At and projects it forward.
func (e *Engine) Forecast(ctx context.Context, req ForecastRequest) (*ForecastReport, error) {
	if req.At.IsZero() {
		req.At = e.opts.Clock()
	}
	if req.HistoryMonths <= 0 {
		req.HistoryMonths = DefaultHistoryMonths
	}
	if req.MonthsAhead <= 0 {
		req.MonthsAhead = forecast.DefaultMonthsAhead
	}

	current := model.MonthStart(req.At)
	window := Period{Start: current.AddDate(0, -req.HistoryMonths, 0), End: current}
	upcoming := Period{Start: current, End: current.AddDate(0, 1, 0)}

	var (
		therapies []model.TherapyOffering
		plans     []model.SessionPlan
		expenses  []model.ExpenseRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := e.store.Therapies(gctx)
		if err != nil {
			return fmt.Errorf("fetching therapies: %w", err)
		}
		therapies = t
		return nil
	})
	g.Go(func() error {
		p, err := e.store.SessionPlans(gctx, window.Start, upcoming.End)
		if err != nil {
			return fmt.Errorf("fetching session plans: %w", err)
		}
		plans = p
		return nil
	})
	if req.FixedCosts == nil {
		g.Go(func() error {
			x, err := e.store.Expenses(gctx, window.End)
			if err != nil {
				return fmt.Errorf("fetching expenses: %w", err)
			}
			expenses = x
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(therapies))
	for _, t := range therapies {
		prices[t.ID] = t.PricePerSession
	}

	history := monthlyGross(window, plans, prices)
	var fixed, planned float64
	switch {
	case req.FixedCosts != nil:
		fixed = *req.FixedCosts
	case len(history) > 0:
		first, _ := time.Parse("2006-01", history[0].Month)
		fixed = ProrateExpenses(expenses, first, window.End) / float64(len(history))
	}
	if req.PlannedRevenue != nil {
		planned = *req.PlannedRevenue
	} else {
		for _, p := range plans {
			if upcoming.Contains(p.PeriodMonth) {
				planned += float64(p.PlannedSessions) * prices[p.TherapyID]
			}
		}
	}

	e.log.WithFields(logrus.Fields{
		"history_months": len(history),
		"months_ahead":   req.MonthsAhead,
		"fixed_costs":    fixed,
	}).Debug("computing forecast")

	feePct := e.opts.FeePercent
	points := forecast.Calculate(history, forecast.Options{MonthsAhead: req.MonthsAhead, Now: window.End.AddDate(0, -1, 0)})
	out := &ForecastReport{
		GeneratedAt:    e.opts.Clock(),
		FeePercent:     feePct,
		FixedCosts:     fixed,
		PlannedRevenue: planned,
		History:        history,
		Points:         points,
		Trend:          forecast.RevenueTrend(history),
		TrendChanges:   forecast.TrendChanges(history),
		Risk:           forecast.AssessRisk(points, planned, feePct),
	}
	if out.TrendChanges == nil {
		out.TrendChanges = []forecast.TrendChange{}
	}
	if len(history) == 0 {
		return out, nil
	}
	if p, ok := forecast.BreakEvenMonth(points, fixed, feePct); ok {
		out.BreakEven = &p
	}
	return out, nil
}

// monthlyGross sums actual session revenue per month of window, dropping
// leading months before the first recorded session.
func monthlyGross(window Period, plans []model.SessionPlan, prices map[string]float64) []model.MonthlyRevenue {
	byMonth := make(map[string]float64)
	seen := make(map[string]bool)
	for _, p := range plans {
		if !window.Contains(p.PeriodMonth) {
			continue
		}
		key := p.PeriodMonth.Format("2006-01")
		byMonth[key] += float64(p.ActualSessions) * prices[p.TherapyID]
		if p.ActualSessions > 0 {
			seen[key] = true
		}
	}

	var out []model.MonthlyRevenue
	for m := window.Start; m.Before(window.End); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		if len(out) == 0 && !seen[key] {
			continue
		}
		out = append(out, model.MonthlyRevenue{Month: key, Revenue: byMonth[key]})
	}
	if out == nil {
		out = []model.MonthlyRevenue{}
	}
	return out
}
