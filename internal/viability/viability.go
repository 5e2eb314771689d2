// Package viability combines revenue coverage, offering and session utilization
// and expense management into a single 0-100 practice health score.
package viability

import (
	"math"

	"github.com/theirongolddev/praxis/internal/model"
)

// DefaultTargetScore is the score ImprovementPath aims for when none is given.
const DefaultTargetScore = 75

const (
	weightRevenue  = 0.40
	weightTherapy  = 0.30
	weightSessions = 0.20
	weightExpenses = 0.10

	criticalBelow = 40
	cautionBelow  = 70
)

// Input is the aggregate practice picture for one period.
type Input struct {
	TotalRevenue       float64 `json:"total_revenue"`
	TotalExpenses      float64 `json:"total_expenses"`
	TotalSessions      int     `json:"total_sessions"`
	TargetSessions     int     `json:"target_sessions"`
	TherapyCount       int     `json:"therapy_count"`
	ActiveTherapyCount int     `json:"active_therapy_count"`
}

type subScores struct {
	revenueRatio    float64 // uncapped
	revenue         float64
	therapy         float64
	sessions        float64
	profitMargin    float64
	expenseSubScore float64
}

func computeSubScores(in Input) subScores {
	var s subScores

	if in.TotalExpenses != 0 {
		s.revenueRatio = in.TotalRevenue / in.TotalExpenses * 100
		s.revenue = math.Min(s.revenueRatio, 100)
	}
	if in.TherapyCount != 0 {
		s.therapy = float64(in.ActiveTherapyCount) / float64(in.TherapyCount) * 100
	}
	if in.TargetSessions != 0 {
		s.sessions = math.Min(float64(in.TotalSessions)/float64(in.TargetSessions)*100, 100)
	}
	if in.TotalRevenue != 0 {
		s.profitMargin = (in.TotalRevenue - in.TotalExpenses) / in.TotalRevenue * 100
	}
	s.expenseSubScore = math.Max(0, math.Min((s.profitMargin+100)*0.5, 100))

	return s
}

// Score computes the weighted viability score for in.
func Score(in Input) model.ViabilityScore {
	s := computeSubScores(in)

	weighted := s.revenue*weightRevenue +
		s.therapy*weightTherapy +
		s.sessions*weightSessions +
		s.expenseSubScore*weightExpenses
	score := math.Min(100, math.Max(0, weighted))

	return model.ViabilityScore{
		Score:              score,
		RevenueRatio:       s.revenueRatio,
		TherapyUtilization: s.therapy,
		SessionUtilization: s.sessions,
		ExpenseManagement:  math.Max(0, s.profitMargin),
		Status:             StatusFor(score),
	}
}

// StatusFor maps a score to its status bucket.
func StatusFor(score float64) model.ViabilityStatus {
	switch {
	case score < criticalBelow:
		return model.StatusCritical
	case score < cautionBelow:
		return model.StatusCaution
	default:
		return model.StatusHealthy
	}
}

// Constraint names the weakest sub-score.
type Constraint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Constraint names.
const (
	ConstraintRevenueCoverage    = "Revenue Coverage"
	ConstraintTherapyUtilization = "Therapy Utilization"
	ConstraintSessionVolume      = "Session Volume"
)

// PrimaryConstraint returns the sub-score holding the practice back the most.
func PrimaryConstraint(in Input) Constraint {
	s := computeSubScores(in)
	candidates := []Constraint{
		{Name: ConstraintRevenueCoverage, Value: s.revenue},
		{Name: ConstraintTherapyUtilization, Value: s.therapy},
		{Name: ConstraintSessionVolume, Value: s.sessions},
	}

	lowest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Value < lowest.Value {
			lowest = c
		}
	}
	return lowest
}

// Feasibility grades how hard an improvement path is.
type Feasibility string

const (
	FeasibilityEasy      Feasibility = "easy"
	FeasibilityModerate  Feasibility = "moderate"
	FeasibilityDifficult Feasibility = "difficult"
)

// Path estimates what it takes to reach a target score.
type Path struct {
	CurrentScore           float64     `json:"current_score"`
	TargetScore            float64     `json:"target_score"`
	RevenueNeeded          float64     `json:"revenue_needed"`
	ExpenseReductionNeeded float64     `json:"expense_reduction_needed"`
	AdditionalSessions     int         `json:"additional_sessions"`
	Feasibility            Feasibility `json:"feasibility"`
}

// ImprovementPath estimates the revenue, cost and session changes needed to lift
// the score of in to targetScore. A non-positive target uses DefaultTargetScore.
func ImprovementPath(in Input, targetScore float64) Path {
	if targetScore <= 0 {
		targetScore = DefaultTargetScore
	}
	current := Score(in).Score

	p := Path{
		CurrentScore: current,
		TargetScore:  targetScore,
		Feasibility:  FeasibilityEasy,
	}
	if current >= targetScore {
		return p
	}

	p.RevenueNeeded = math.Max(0, in.TotalExpenses*1.2-in.TotalRevenue)
	p.ExpenseReductionNeeded = in.TotalExpenses * 0.2
	if gap := in.TargetSessions - in.TotalSessions; gap > 0 {
		p.AdditionalSessions = gap
	}

	switch {
	case in.TotalRevenue <= 0:
		if p.RevenueNeeded > 0 {
			p.Feasibility = FeasibilityDifficult
		}
	case p.RevenueNeeded/in.TotalRevenue < 0.10:
		p.Feasibility = FeasibilityEasy
	case p.RevenueNeeded/in.TotalRevenue > 0.50:
		p.Feasibility = FeasibilityDifficult
	default:
		p.Feasibility = FeasibilityModerate
	}
	return p
}
