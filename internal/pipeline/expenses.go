package pipeline

import (
	"time"

	"github.com/theirongolddev/praxis/internal/model"
)

// ProrateExpenses returns the expense amount that falls into [start, end).
//
// One-off expenses count in full when dated inside the window. Recurring
// expenses that spread monthly contribute their monthly equivalent for every
// month of the window on or after their start month. Quarterly and yearly
// expenses without SpreadMonthly count in full on each occurrence month.
func ProrateExpenses(expenses []model.ExpenseRecord, start, end time.Time) float64 {
	var total float64
	for _, e := range expenses {
		total += prorate(e, start, end)
	}
	return total
}

// RecurringOnly filters expenses down to the recurring budget baseline.
func RecurringOnly(expenses []model.ExpenseRecord) []model.ExpenseRecord {
	var out []model.ExpenseRecord
	for _, e := range expenses {
		if e.IsRecurring {
			out = append(out, e)
		}
	}
	return out
}

func prorate(e model.ExpenseRecord, start, end time.Time) float64 {
	if !e.IsRecurring {
		if !e.Date.Before(start) && e.Date.Before(end) {
			return e.Amount
		}
		return 0
	}

	first := model.MonthStart(e.Date)
	step := 0
	if !e.SpreadsMonthly() {
		switch e.RecurrenceInterval {
		case model.IntervalQuarterly:
			step = 3
		case model.IntervalYearly:
			step = 12
		default:
			return 0
		}
	}

	var total float64
	for m := model.MonthStart(start); m.Before(end); m = m.AddDate(0, 1, 0) {
		if m.Before(first) {
			continue
		}
		if step == 0 {
			total += e.MonthlyEquivalent()
			continue
		}
		if monthsBetween(first, m)%step == 0 {
			total += e.Amount
		}
	}
	return total
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
