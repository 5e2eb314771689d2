// Package model defines the plain records exchanged with the praxis calculation engine.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when an input record violates its invariants.
var ErrInvalidRecord = errors.New("invalid record")

// TherapyOffering is one bookable therapy with its per-session economics.
type TherapyOffering struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	PricePerSession        float64 `json:"price_per_session"`
	VariableCostPerSession float64 `json:"variable_cost_per_session"`
}

// Validate checks the non-negative money invariants.
func (t TherapyOffering) Validate() error {
	if t.PricePerSession < 0 {
		return fmt.Errorf("therapy %q: negative price %.2f: %w", t.Name, t.PricePerSession, ErrInvalidRecord)
	}
	if t.VariableCostPerSession < 0 {
		return fmt.Errorf("therapy %q: negative variable cost %.2f: %w", t.Name, t.VariableCostPerSession, ErrInvalidRecord)
	}
	return nil
}

// SessionPlan holds booked vs. completed sessions for one therapy in one calendar month.
type SessionPlan struct {
	TherapyID       string    `json:"therapy_id"`
	PeriodMonth     time.Time `json:"period_month"` // first day of month, UTC
	PlannedSessions int       `json:"planned_sessions"`
	ActualSessions  int       `json:"actual_sessions"`
}

// Validate checks the non-negative session counts.
func (p SessionPlan) Validate() error {
	if p.TherapyID == "" {
		return fmt.Errorf("session plan without therapy id: %w", ErrInvalidRecord)
	}
	if p.PlannedSessions < 0 || p.ActualSessions < 0 {
		return fmt.Errorf("session plan %s %s: negative session count: %w",
			p.TherapyID, p.PeriodMonth.Format("2006-01"), ErrInvalidRecord)
	}
	return nil
}

// MonthStart truncates t to the first instant of its calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
