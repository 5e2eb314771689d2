// Package pipeline loads practice records from a Store and runs the calculators
// over them to produce period reports and revenue forecasts.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/praxis/internal/calc"
	"github.com/theirongolddev/praxis/internal/fees"
	"github.com/theirongolddev/praxis/internal/model"
	"github.com/theirongolddev/praxis/internal/variance"
	"github.com/theirongolddev/praxis/internal/viability"
)

// Store is the read side the engine needs.
type Store interface {
	Therapies(ctx context.Context) ([]model.TherapyOffering, error)
	// SessionPlans returns plans whose PeriodMonth lies in [from, until).
	// A zero from means no lower bound.
	SessionPlans(ctx context.Context, from, until time.Time) ([]model.SessionPlan, error)
	// Expenses returns every expense dated before until.
	Expenses(ctx context.Context, until time.Time) ([]model.ExpenseRecord, error)
}

// Options configures an Engine.
type Options struct {
	FeePercent  float64
	TargetScore float64
	Logger      *logrus.Logger
	Clock       func() time.Time
}

// Engine computes reports from the records in a Store.
type Engine struct {
	store Store
	opts  Options
	log   *logrus.Logger
}

// NewEngine returns an Engine reading from store.
func NewEngine(store Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TargetScore <= 0 {
		opts.TargetScore = viability.DefaultTargetScore
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Engine{store: store, opts: opts, log: log}
}

// FeePercent is the payment-processing fee the engine applies.
func (e *Engine) FeePercent() float64 { return e.opts.FeePercent }

// Request selects the period and baseline of a report.
type Request struct {
	Scope   Scope      `json:"scope"`
	Compare Comparison `json:"compare"`
	At      time.Time  `json:"at"`
}

// Units is a session count where +Inf means the target is never reached.
type Units float64

// MarshalJSON encodes an unreachable count as null.
func (u Units) MarshalJSON() ([]byte, error) {
	f := float64(u)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// TherapyLine is the per-therapy part of a report.
type TherapyLine struct {
	Therapy           model.TherapyOffering    `json:"therapy"`
	Revenue           model.SessionRevenue     `json:"revenue"`
	NetRevenue        float64                  `json:"net_revenue"`
	Contribution      model.ContributionMargin `json:"contribution"`
	Cost              model.CostBreakdown      `json:"cost"`
	Sessions          model.SessionMetrics     `json:"sessions"`
	BreakEvenSessions Units                    `json:"break_even_sessions"` // sessions of this therapy alone to cover the period's expenses
}

// BreakEvenStatus classifies a period's net income.
type BreakEvenStatus string

const (
	StatusSurplus   BreakEvenStatus = "surplus"
	StatusBreakEven BreakEvenStatus = "breakeven"
	StatusDeficit   BreakEvenStatus = "deficit"
)

// DataQuality grades how much of the report is backed by recorded sessions.
type DataQuality string

const (
	QualityInsufficient DataQuality = "insufficient"
	QualityPartial      DataQuality = "partial"
	QualityComplete     DataQuality = "complete"
)

// Report is the result of one Compute call.
type Report struct {
	GeneratedAt      time.Time  `json:"generated_at"`
	Scope            Scope      `json:"scope"`
	Period           Period     `json:"period"`
	Comparison       Comparison `json:"comparison"`
	ComparisonPeriod *Period    `json:"comparison_period,omitempty"`
	FeePercent       float64    `json:"fee_percent"`

	GrossRevenue    float64 `json:"gross_revenue"`
	FeeAmount       float64 `json:"fee_amount"`
	NetRevenue      float64 `json:"net_revenue"`
	VariableCosts   float64 `json:"variable_costs"`
	Expenses        float64 `json:"expenses"`
	NetIncome       float64 `json:"net_income"`
	PlannedSessions int     `json:"planned_sessions"`
	ActualSessions  int     `json:"actual_sessions"`

	Therapies []TherapyLine `json:"therapies"`

	Margin      model.MarginResult   `json:"margin"`
	Viability   model.ViabilityScore `json:"viability"`
	Constraint  viability.Constraint `json:"primary_constraint"`
	Improvement viability.Path       `json:"improvement"`
	Status      BreakEvenStatus      `json:"break_even_status"`

	Alerts       []model.VarianceAlert `json:"alerts"`
	AlertSummary variance.Summary      `json:"alert_summary"`
	DataQuality  DataQuality           `json:"data_quality"`
}

type snapshot struct {
	therapies []model.TherapyOffering
	plans     []model.SessionPlan
	prior     []model.SessionPlan
	expenses  []model.ExpenseRecord
}

// Compute builds the report for req. Store failures are returned wrapped.
func (e *Engine) Compute(ctx context.Context, req Request) (*Report, error) {
	if req.At.IsZero() {
		req.At = e.opts.Clock()
	}
	if req.Compare == "" {
		req.Compare = CompareNone
	}

	period, err := ResolvePeriod(req.Scope, req.At, time.Time{})
	if err != nil {
		return nil, err
	}
	cmpPeriod, hasCmp, err := ComparisonPeriod(req.Scope, req.Compare, period)
	if err != nil {
		return nil, err
	}

	from := period.Start
	if req.Scope == ScopeAllTime {
		from = time.Time{}
	}

	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := e.store.Therapies(gctx)
		if err != nil {
			return fmt.Errorf("fetching therapies: %w", err)
		}
		snap.therapies = t
		return nil
	})
	g.Go(func() error {
		p, err := e.store.SessionPlans(gctx, from, period.End)
		if err != nil {
			return fmt.Errorf("fetching session plans: %w", err)
		}
		snap.plans = p
		return nil
	})
	if hasCmp {
		g.Go(func() error {
			p, err := e.store.SessionPlans(gctx, cmpPeriod.Start, cmpPeriod.End)
			if err != nil {
				return fmt.Errorf("fetching comparison plans: %w", err)
			}
			snap.prior = p
			return nil
		})
	}
	g.Go(func() error {
		x, err := e.store.Expenses(gctx, period.End)
		if err != nil {
			return fmt.Errorf("fetching expenses: %w", err)
		}
		snap.expenses = x
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if req.Scope == ScopeAllTime {
		period, _ = ResolvePeriod(ScopeAllTime, req.At, earliestRecord(snap.plans, snap.expenses))
	}

	e.log.WithFields(logrus.Fields{
		"scope":     req.Scope,
		"compare":   req.Compare,
		"start":     period.Start.Format("2006-01-02"),
		"end":       period.End.Format("2006-01-02"),
		"therapies": len(snap.therapies),
		"plans":     len(snap.plans),
		"expenses":  len(snap.expenses),
	}).Debug("computing report")

	r := e.build(period, snap.therapies, snap.plans, snap.expenses)
	r.GeneratedAt = e.opts.Clock()
	r.Scope = req.Scope
	r.Comparison = req.Compare

	var baseline *model.MetricsComparison
	switch {
	case req.Compare == ComparePlan:
		b := e.planBaseline(period, snap.therapies, snap.plans, snap.expenses)
		baseline = &b
	case hasCmp:
		prev := e.build(cmpPeriod, snap.therapies, snap.prior, snap.expenses)
		b := prev.comparison()
		baseline = &b
		r.ComparisonPeriod = &cmpPeriod
	default:
		r.Comparison = CompareNone
	}
	r.Alerts = variance.Detect(r.comparison(), baseline)
	r.AlertSummary = variance.Summarize(r.Alerts)
	return r, nil
}

// build aggregates the actual figures for one period.
func (e *Engine) build(period Period, therapies []model.TherapyOffering, plans []model.SessionPlan,
	expenses []model.ExpenseRecord) *Report {
	feePct := e.opts.FeePercent
	r := &Report{Period: period, FeePercent: feePct, Therapies: []TherapyLine{}}

	planned, actual := sessionsByTherapy(period, plans)
	r.Expenses = ProrateExpenses(expenses, period.Start, period.End)

	active := 0
	for _, t := range therapies {
		p, a := planned[t.ID], actual[t.ID]
		rev := calc.SessionRevenue(a, t.PricePerSession)

		line := TherapyLine{
			Therapy:           t,
			Revenue:           rev,
			NetRevenue:        fees.Net(rev.Revenue, feePct),
			Contribution:      calc.ContributionMargin(t.PricePerSession, t.VariableCostPerSession),
			Cost:              fees.BreakdownCost(t.PricePerSession, t.VariableCostPerSession, feePct),
			Sessions:          calc.SessionMetrics(p, a),
			BreakEvenSessions: Units(fees.BreakEvenUnits(r.Expenses, t.PricePerSession, t.VariableCostPerSession, feePct)),
		}
		r.Therapies = append(r.Therapies, line)

		r.GrossRevenue += rev.Revenue
		r.VariableCosts += float64(a) * t.VariableCostPerSession
		r.PlannedSessions += p
		r.ActualSessions += a
		if a > 0 {
			active++
		}
	}
	for id := range actual {
		if !hasTherapy(therapies, id) {
			e.log.WithField("therapy_id", id).Warn("session plan references unknown therapy")
		}
	}

	r.FeeAmount = fees.Fee(r.GrossRevenue, feePct)
	r.NetRevenue = r.GrossRevenue - r.FeeAmount
	r.Margin = calc.Margin(r.NetRevenue, r.VariableCosts, r.Expenses)
	r.NetIncome = r.Margin.Margin

	in := viability.Input{
		TotalRevenue:       r.NetRevenue,
		TotalExpenses:      r.VariableCosts + r.Expenses,
		TotalSessions:      r.ActualSessions,
		TargetSessions:     r.PlannedSessions,
		TherapyCount:       len(therapies),
		ActiveTherapyCount: active,
	}
	r.Viability = viability.Score(in)
	r.Constraint = viability.PrimaryConstraint(in)
	r.Improvement = viability.ImprovementPath(in, e.opts.TargetScore)

	switch {
	case r.NetIncome > 0:
		r.Status = StatusSurplus
	case r.Margin.BreakEven:
		r.Status = StatusBreakEven
	default:
		r.Status = StatusDeficit
	}

	switch {
	case r.ActualSessions == 0 && len(therapies) == 0:
		r.DataQuality = QualityInsufficient
	case len(therapies) == 0 || active*2 < len(therapies):
		r.DataQuality = QualityPartial
	default:
		r.DataQuality = QualityComplete
	}
	return r
}

// comparison projects the report onto the shape the variance detector compares.
func (r *Report) comparison() model.MetricsComparison {
	m := model.MetricsComparison{
		Revenue:   r.NetRevenue,
		Expenses:  r.Expenses,
		Sessions:  r.ActualSessions,
		Therapies: make([]model.TherapyComparison, 0, len(r.Therapies)),
	}
	for _, t := range r.Therapies {
		m.Therapies = append(m.Therapies, model.TherapyComparison{
			TherapyID: t.Therapy.ID,
			Name:      t.Therapy.Name,
			Sessions:  t.Sessions.Actual,
			Revenue:   t.NetRevenue,
		})
	}
	return m
}

// planBaseline is what the period should look like if every planned session
// happened and only recurring expenses were booked.
func (e *Engine) planBaseline(period Period, therapies []model.TherapyOffering, plans []model.SessionPlan,
	expenses []model.ExpenseRecord) model.MetricsComparison {
	planned, _ := sessionsByTherapy(period, plans)

	m := model.MetricsComparison{
		Expenses:  ProrateExpenses(RecurringOnly(expenses), period.Start, period.End),
		Therapies: make([]model.TherapyComparison, 0, len(therapies)),
	}
	var gross float64
	for _, t := range therapies {
		p := planned[t.ID]
		rev := calc.SessionRevenue(p, t.PricePerSession).Revenue
		gross += rev
		m.Sessions += p
		m.Therapies = append(m.Therapies, model.TherapyComparison{
			TherapyID: t.ID,
			Name:      t.Name,
			Sessions:  p,
			Revenue:   fees.Net(rev, e.opts.FeePercent),
		})
	}
	m.Revenue = fees.Net(gross, e.opts.FeePercent)
	return m
}

func sessionsByTherapy(period Period, plans []model.SessionPlan) (planned, actual map[string]int) {
	planned = make(map[string]int)
	actual = make(map[string]int)
	for _, p := range plans {
		if !period.Contains(p.PeriodMonth) {
			continue
		}
		planned[p.TherapyID] += p.PlannedSessions
		actual[p.TherapyID] += p.ActualSessions
	}
	return planned, actual
}

func hasTherapy(therapies []model.TherapyOffering, id string) bool {
	for _, t := range therapies {
		if t.ID == id {
			return true
		}
	}
	return false
}

func earliestRecord(plans []model.SessionPlan, expenses []model.ExpenseRecord) time.Time {
	var earliest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	for _, p := range plans {
		consider(p.PeriodMonth)
	}
	for _, x := range expenses {
		consider(x.Date)
	}
	return earliest
}
