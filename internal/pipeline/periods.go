package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/praxis/internal/model"
)

var (
	ErrUnknownScope      = errors.New("unknown scope")
	ErrUnknownComparison = errors.New("unknown comparison")
)

// Scope selects the calendar window a report covers.
type Scope string

const (
	ScopeMonth   Scope = "month"
	ScopeQuarter Scope = "quarter"
	ScopeYear    Scope = "year"
	ScopeAllTime Scope = "allTime"
)

// ParseScope accepts the scope names used on the command line and in HTTP queries.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "month":
		return ScopeMonth, nil
	case "quarter":
		return ScopeQuarter, nil
	case "year":
		return ScopeYear, nil
	case "allTime", "all", "alltime":
		return ScopeAllTime, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownScope)
}

// Comparison selects the baseline a report is compared against.
type Comparison string

const (
	CompareNone       Comparison = "none"
	ComparePlan       Comparison = "plan"
	CompareLastPeriod Comparison = "lastPeriod"
	CompareLastYear   Comparison = "lastYear"
)

// ParseComparison accepts the comparison names used on the command line and in HTTP queries.
func ParseComparison(s string) (Comparison, error) {
	switch s {
	case "", "none":
		return CompareNone, nil
	case "plan":
		return ComparePlan, nil
	case "lastPeriod", "last-period", "previous":
		return CompareLastPeriod, nil
	case "lastYear", "last-year":
		return CompareLastYear, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownComparison)
}

// Period is a half-open [Start, End) window in UTC.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Months returns the number of calendar months the period spans.
func (p Period) Months() int {
	n := (p.End.Year()-p.Start.Year())*12 + int(p.End.Month()) - int(p.Start.Month())
	if n < 0 {
		return 0
	}
	return n
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Label renders the period the way reports print it.
func (p Period) Label() string {
	if p.Months() == 1 {
		return p.Start.Format("2006-01")
	}
	return p.Start.Format("2006-01") + ".." + p.End.AddDate(0, -1, 0).Format("2006-01")
}

// ResolvePeriod returns the calendar window of scope containing at.
// earliest is the first month holding data and only matters for ScopeAllTime;
// a zero earliest collapses allTime to at's month.
func ResolvePeriod(scope Scope, at, earliest time.Time) (Period, error) {
	month := model.MonthStart(at)
	switch scope {
	case ScopeMonth:
		return Period{Start: month, End: month.AddDate(0, 1, 0)}, nil
	case ScopeQuarter:
		q := time.Date(month.Year(), month.Month()-(month.Month()-1)%3, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: q, End: q.AddDate(0, 3, 0)}, nil
	case ScopeYear:
		y := time.Date(month.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: y, End: y.AddDate(1, 0, 0)}, nil
	case ScopeAllTime:
		start := month
		if !earliest.IsZero() {
			if e := model.MonthStart(earliest); e.Before(start) {
				start = e
			}
		}
		return Period{Start: start, End: month.AddDate(0, 1, 0)}, nil
	}
	return Period{}, fmt.Errorf("%q: %w", scope, ErrUnknownScope)
}

// ComparisonPeriod returns the baseline window for cmp. The bool is false when
// the comparison has no separate window (none, plan) or the scope has no
// predecessor (allTime).
func ComparisonPeriod(scope Scope, cmp Comparison, current Period) (Period, bool, error) {
	switch cmp {
	case CompareNone, ComparePlan:
		return Period{}, false, nil
	case CompareLastPeriod:
		if scope == ScopeAllTime {
			return Period{}, false, nil
		}
		n := current.Months()
		return Period{Start: current.Start.AddDate(0, -n, 0), End: current.Start}, true, nil
	case CompareLastYear:
		if scope == ScopeAllTime {
			return Period{}, false, nil
		}
		return Period{Start: current.Start.AddDate(-1, 0, 0), End: current.End.AddDate(-1, 0, 0)}, true, nil
	}
	return Period{}, false, fmt.Errorf("%q: %w", cmp, ErrUnknownComparison)
}
