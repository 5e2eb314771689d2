// Package importer reads practice records from a YAML file into the store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/praxis/internal/model"
)

// File is the on-disk practice file.
//
//	therapies:
//	  - {id: physio, name: Physiotherapy, price: 85, variable_cost: 4.5}
//	plans:
//	  - {therapy: physio, month: 2026-10, planned: 40, actual: 32}
//	expenses:
//	  - {description: Rent, amount: 1500, date: 2026-01-01, recurring: monthly}
type File struct {
	Therapies []Therapy `yaml:"therapies"`
	Plans     []Plan    `yaml:"plans"`
	Expenses  []Expense `yaml:"expenses"`
}

type Therapy struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Price        float64 `yaml:"price"`
	VariableCost float64 `yaml:"variable_cost"`
}

type Plan struct {
	Therapy string `yaml:"therapy"`
	Month   string `yaml:"month"` // YYYY-MM
	Planned int    `yaml:"planned"`
	Actual  int    `yaml:"actual"`
}

type Expense struct {
	ID            string  `yaml:"id"`
	Description   string  `yaml:"description"`
	Amount        float64 `yaml:"amount"`
	Date          string  `yaml:"date"`      // YYYY-MM-DD
	Recurring     string  `yaml:"recurring"` // interval; empty for one-off
	SpreadMonthly bool    `yaml:"spread_monthly"`
}

// Saver is the store Apply reads therapies from and writes records to.
type Saver interface {
	Therapies(ctx context.Context) ([]model.TherapyOffering, error)
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	SaveTherapy(ctx context.Context, t model.TherapyOffering) (model.TherapyOffering, error)
	SavePlan(ctx context.Context, p model.SessionPlan) error
	SaveExpense(ctx context.Context, e model.ExpenseRecord) (model.ExpenseRecord, error)
}

// Result counts the records written by Apply.
type Result struct {
	Therapies int `json:"therapies"`
	Plans     int `json:"plans"`
	Expenses  int `json:"expenses"`
}

// Load decodes a practice file. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decoding practice file: %w", err)
	}
	return &f, nil
}

type records struct {
	therapies []model.TherapyOffering
	plans     []model.SessionPlan
	expenses  []model.ExpenseRecord
}

// Validate converts every entry and reports all invalid ones at once. Plans
// may reference a therapy from f or one already in stored.
func Validate(f *File, stored []model.TherapyOffering) error {
	_, err := convert(f, stored)
	return err
}

// derivedID names a record that has no id in the file, so re-importing the
// same file updates rows instead of duplicating them.
func derivedID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("praxis:"+kind+":"+key)).String()
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func convert(f *File, stored []model.TherapyOffering) (records, error) {
	var out records
	var errs []error

	// plans reference a therapy by id or by name
	ids := make(map[string]bool, len(stored)+len(f.Therapies))
	names := make(map[string]string, len(stored)+len(f.Therapies))
	for _, t := range stored {
		ids[t.ID] = true
		names[nameKey(t.Name)] = t.ID
	}

	for i, t := range f.Therapies {
		rec := model.TherapyOffering{ID: t.ID, Name: t.Name, PricePerSession: t.Price, VariableCostPerSession: t.VariableCost}
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("therapies[%d]: missing name: %w", i, model.ErrInvalidRecord))
			continue
		}
		if rec.ID == "" {
			if id, ok := names[nameKey(t.Name)]; ok {
				rec.ID = id
			} else {
				rec.ID = derivedID("therapy", nameKey(t.Name))
			}
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("therapies[%d]: %w", i, err))
			continue
		}
		ids[rec.ID] = true
		names[nameKey(rec.Name)] = rec.ID
		out.therapies = append(out.therapies, rec)
	}

	for i, p := range f.Plans {
		m, err := time.Parse("2006-01", p.Month)
		if err != nil {
			errs = append(errs, fmt.Errorf("plans[%d]: month %q is not YYYY-MM: %w", i, p.Month, model.ErrInvalidRecord))
			continue
		}
		rec := model.SessionPlan{TherapyID: p.Therapy, PeriodMonth: m, PlannedSessions: p.Planned, ActualSessions: p.Actual}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("plans[%d]: %w", i, err))
			continue
		}
		id, ok := p.Therapy, ids[p.Therapy]
		if !ok {
			id, ok = names[nameKey(p.Therapy)]
		}
		if !ok {
			errs = append(errs, fmt.Errorf("plans[%d]: unknown therapy %q: %w", i, p.Therapy, model.ErrInvalidRecord))
			continue
		}
		rec.TherapyID = id
		out.plans = append(out.plans, rec)
	}

	seen := make(map[string]int, len(f.Expenses))
	for i, e := range f.Expenses {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			errs = append(errs, fmt.Errorf("expenses[%d]: date %q is not YYYY-MM-DD: %w", i, e.Date, model.ErrInvalidRecord))
			continue
		}
		interval, err := model.ParseInterval(e.Recurring)
		if err != nil {
			errs = append(errs, fmt.Errorf("expenses[%d]: %w", i, err))
			continue
		}
		rec := model.ExpenseRecord{
			ID:                 e.ID,
			Description:        e.Description,
			Amount:             e.Amount,
			Date:               d,
			IsRecurring:        interval != model.IntervalNone,
			RecurrenceInterval: interval,
			SpreadMonthly:      e.SpreadMonthly,
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("expenses[%d]: %w", i, err))
			continue
		}
		if rec.ID == "" {
			base := strings.Join([]string{
				e.Description, e.Date, strconv.FormatFloat(e.Amount, 'f', -1, 64),
				string(interval), strconv.FormatBool(e.SpreadMonthly),
			}, "|")
			// identical lines are separate purchases
			key := base
			if n := seen[base]; n > 0 {
				key = base + "#" + strconv.Itoa(n)
			}
			seen[base]++
			rec.ID = derivedID("expense", key)
		}
		out.expenses = append(out.expenses, rec)
	}

	return out, errors.Join(errs...)
}

// Apply validates f against the stored therapies and writes its records in one
// transaction. Nothing is written when any record is invalid or any write
// fails. Therapies are written before plans.
func Apply(ctx context.Context, s Saver, f *File) (Result, error) {
	var res Result
	err := s.WithTx(ctx, func(ctx context.Context) error {
		stored, err := s.Therapies(ctx)
		if err != nil {
			return err
		}
		recs, err := convert(f, stored)
		if err != nil {
			return err
		}

		var n Result
		for _, t := range recs.therapies {
			if _, err := s.SaveTherapy(ctx, t); err != nil {
				return err
			}
			n.Therapies++
		}
		for _, p := range recs.plans {
			if err := s.SavePlan(ctx, p); err != nil {
				return err
			}
			n.Plans++
		}
		for _, e := range recs.expenses {
			if _, err := s.SaveExpense(ctx, e); err != nil {
				return err
			}
			n.Expenses++
		}
		res = n
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
