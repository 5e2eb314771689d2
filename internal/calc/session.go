package calc

import "github.com/theirongolddev/praxis/internal/model"

// SessionMetrics compares booked against completed sessions.
func SessionMetrics(planned, actual int) model.SessionMetrics {
	m := model.SessionMetrics{
		Planned:  planned,
		Actual:   actual,
		Variance: actual - planned,
	}
	if planned != 0 {
		m.VariancePercent = float64(m.Variance) / float64(planned) * 100
		m.UtilizationRate = float64(actual) / float64(planned) * 100
	}
	return m
}
