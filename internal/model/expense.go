package model

import (
	"fmt"
	"time"
)

// RecurrenceInterval is how often a recurring expense is billed.
type RecurrenceInterval string

const (
	IntervalNone      RecurrenceInterval = ""
	IntervalDaily     RecurrenceInterval = "daily"
	IntervalWeekly    RecurrenceInterval = "weekly"
	IntervalMonthly   RecurrenceInterval = "monthly"
	IntervalQuarterly RecurrenceInterval = "quarterly"
	IntervalYearly    RecurrenceInterval = "yearly"
)

// ParseInterval maps a textual interval to a RecurrenceInterval.
func ParseInterval(s string) (RecurrenceInterval, error) {
	switch RecurrenceInterval(s) {
	case IntervalNone, IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return RecurrenceInterval(s), nil
	}
	return IntervalNone, fmt.Errorf("unknown recurrence interval %q: %w", s, ErrInvalidRecord)
}

// ExpenseRecord is a single booked or recurring practice expense.
type ExpenseRecord struct {
	ID                 string             `json:"id"`
	Description        string             `json:"description,omitempty"`
	Amount             float64            `json:"amount"`
	Date               time.Time          `json:"date"`
	IsRecurring        bool               `json:"is_recurring"`
	RecurrenceInterval RecurrenceInterval `json:"recurrence_interval,omitempty"`
	SpreadMonthly      bool               `json:"spread_monthly"`
}

// Validate checks the amount and recurrence metadata.
func (e ExpenseRecord) Validate() error {
	if e.Amount < 0 {
		return fmt.Errorf("expense %q: negative amount %.2f: %w", e.Description, e.Amount, ErrInvalidRecord)
	}
	if _, err := ParseInterval(string(e.RecurrenceInterval)); err != nil {
		return fmt.Errorf("expense %q: %w", e.Description, err)
	}
	if e.IsRecurring && e.RecurrenceInterval == IntervalNone {
		return fmt.Errorf("expense %q: recurring without interval: %w", e.Description, ErrInvalidRecord)
	}
	return nil
}

// MonthlyEquivalent returns the amount this recurring expense costs per month.
// yearly and quarterly expenses are only spread when SpreadMonthly is set; otherwise
// they return 0 and are charged on their occurrence months instead.
func (e ExpenseRecord) MonthlyEquivalent() float64 {
	if !e.IsRecurring {
		return 0
	}
	switch e.RecurrenceInterval {
	case IntervalDaily:
		return e.Amount * 365 / 12
	case IntervalWeekly:
		return e.Amount * 52 / 12
	case IntervalMonthly:
		return e.Amount
	case IntervalQuarterly:
		if e.SpreadMonthly {
			return e.Amount / 3
		}
	case IntervalYearly:
		if e.SpreadMonthly {
			return e.Amount / 12
		}
	}
	return 0
}

// SpreadsMonthly reports whether the expense contributes every month rather than
// on discrete occurrence months.
func (e ExpenseRecord) SpreadsMonthly() bool {
	if !e.IsRecurring {
		return false
	}
	switch e.RecurrenceInterval {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	case IntervalQuarterly, IntervalYearly:
		return e.SpreadMonthly
	}
	return false
}
