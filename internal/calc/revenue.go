// Package calc holds the single-formula revenue, margin and session calculators.
package calc

import "github.com/theirongolddev/praxis/internal/model"

// SessionLine is a number of sessions sold at one price.
type SessionLine struct {
	Sessions int
	Price    float64
}

// SessionRevenue computes revenue for sessions at price.
func SessionRevenue(sessions int, price float64) model.SessionRevenue {
	return model.SessionRevenue{
		Revenue:         float64(sessions) * price,
		Sessions:        sessions,
		PricePerSession: price,
		AveragePrice:    price,
	}
}

// TotalRevenue sums sessions*price over lines.
func TotalRevenue(lines []SessionLine) float64 {
	var total float64
	for _, l := range lines {
		total += float64(l.Sessions) * l.Price
	}
	return total
}

// AveragePricePerSession is total revenue per session, or 0 with no sessions.
func AveragePricePerSession(lines []SessionLine) float64 {
	sessions := 0
	for _, l := range lines {
		sessions += l.Sessions
	}
	if sessions == 0 {
		return 0
	}
	return TotalRevenue(lines) / float64(sessions)
}

// RevenueGrowthRate is the percent change from previous to current.
// Growth from zero is reported as 100 (or 0 when current is also zero).
func RevenueGrowthRate(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}
