package importer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/praxis/internal/model"
	"github.com/theirongolddev/praxis/internal/store"
)

const practiceYAML = `
therapies:
  - id: physio
    name: Physiotherapy
    price: 85
    variable_cost: 4.5
  - id: massage
    name: Massage
    price: 60
plans:
  - therapy: physio
    month: 2026-09
    planned: 40
    actual: 38
  - therapy: massage
    month: 2026-09
    planned: 20
    actual: 22
expenses:
  - id: rent
    description: Rent
    amount: 1500
    date: 2026-01-01
    recurring: monthly
  - description: Liability insurance
    amount: 480
    date: 2026-03-01
    recurring: yearly
    spread_monthly: true
  - description: Treatment couch
    amount: 300
    date: 2026-09-12
`

func TestLoad(t *testing.T) {
	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)
	require.Len(t, f.Therapies, 2)
	require.Len(t, f.Plans, 2)
	require.Len(t, f.Expenses, 3)
	assert.Equal(t, "2026-09", f.Plans[0].Month)
	assert.Equal(t, "2026-01-01", f.Expenses[0].Date)
	assert.True(t, f.Expenses[1].SpreadMonthly)
}

func TestLoad_Empty(t *testing.T) {
	f, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Therapies)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader("therapies:\n  - name: Physio\n    cost: 3\n"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	f := &File{
		Therapies: []Therapy{{Name: "Physio", Price: -5}, {Price: 10}},
		Plans:     []Plan{{Therapy: "physio", Month: "October"}},
		Expenses:  []Expense{{Amount: 10, Date: "2026-10-01", Recurring: "hourly"}},
	}
	err := Validate(f, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidRecord))
	for _, want := range []string{"therapies[0]", "therapies[1]", "plans[0]", "expenses[0]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_PlanReferences(t *testing.T) {
	f := &File{
		Therapies: []Therapy{{Name: "Massage", Price: 60}},
		Plans: []Plan{
			{Therapy: "physio", Month: "2026-10", Planned: 10},
			{Therapy: "massage", Month: "2026-10", Planned: 5},
			{Therapy: "ghost", Month: "2026-10", Planned: 1},
		},
	}
	err := Validate(f, []model.TherapyOffering{{ID: "physio", Name: "Physiotherapy", PricePerSession: 85}})
	require.ErrorIs(t, err, model.ErrInvalidRecord)
	assert.Contains(t, err.Error(), `plans[2]: unknown therapy "ghost"`)
	assert.NotContains(t, err.Error(), "plans[0]")
	assert.NotContains(t, err.Error(), "plans[1]")

	f.Plans = f.Plans[:2]
	recs, err := convert(f, nil)
	require.ErrorIs(t, err, model.ErrInvalidRecord)
	require.Len(t, recs.plans, 1)
	assert.Equal(t, recs.therapies[0].ID, recs.plans[0].TherapyID)
}

func TestConvert_DerivedIDsAreStable(t *testing.T) {
	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)
	f.Expenses = append(f.Expenses, f.Expenses[2])

	first, err := convert(f, nil)
	require.NoError(t, err)
	second, err := convert(f, nil)
	require.NoError(t, err)

	assert.Equal(t, "rent", first.expenses[0].ID)
	assert.NotEmpty(t, first.expenses[1].ID)
	for i := range first.expenses {
		assert.Equal(t, first.expenses[i].ID, second.expenses[i].ID)
	}
	assert.NotEqual(t, first.expenses[2].ID, first.expenses[3].ID)

	// a therapy without an id keeps the id it already has in the store
	f = &File{Therapies: []Therapy{{Name: "physiotherapy ", Price: 90}}}
	recs, err := convert(f, []model.TherapyOffering{{ID: "physio", Name: "Physiotherapy", PricePerSession: 85}})
	require.NoError(t, err)
	assert.Equal(t, "physio", recs.therapies[0].ID)
}

type recordingSaver struct {
	stored    []model.TherapyOffering
	therapies []model.TherapyOffering
	plans     []model.SessionPlan
	expenses  []model.ExpenseRecord
	failPlans error
}

func (r *recordingSaver) Therapies(context.Context) ([]model.TherapyOffering, error) {
	return r.stored, nil
}

// WithTx drops everything fn recorded when it fails.
func (r *recordingSaver) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	therapies, plans, expenses := len(r.therapies), len(r.plans), len(r.expenses)
	if err := fn(ctx); err != nil {
		r.therapies, r.plans, r.expenses = r.therapies[:therapies], r.plans[:plans], r.expenses[:expenses]
		return err
	}
	return nil
}

func (r *recordingSaver) SaveTherapy(_ context.Context, t model.TherapyOffering) (model.TherapyOffering, error) {
	r.therapies = append(r.therapies, t)
	return t, nil
}

func (r *recordingSaver) SavePlan(_ context.Context, p model.SessionPlan) error {
	if r.failPlans != nil {
		return r.failPlans
	}
	r.plans = append(r.plans, p)
	return nil
}

func (r *recordingSaver) SaveExpense(_ context.Context, e model.ExpenseRecord) (model.ExpenseRecord, error) {
	r.expenses = append(r.expenses, e)
	return e, nil
}

func TestApply_ConvertsRecords(t *testing.T) {
	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)

	s := &recordingSaver{}
	res, err := Apply(context.Background(), s, f)
	require.NoError(t, err)
	assert.Equal(t, Result{Therapies: 2, Plans: 2, Expenses: 3}, res)

	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), s.plans[0].PeriodMonth)
	assert.Equal(t, model.IntervalMonthly, s.expenses[0].RecurrenceInterval)
	assert.True(t, s.expenses[0].IsRecurring)
	assert.False(t, s.expenses[2].IsRecurring)
	assert.Equal(t, 4.5, s.therapies[0].VariableCostPerSession)
}

func TestApply_InvalidWritesNothing(t *testing.T) {
	s := &recordingSaver{}
	f := &File{
		Therapies: []Therapy{{ID: "physio", Name: "Physio", Price: 85}},
		Plans:     []Plan{{Therapy: "physio", Month: "2026-10", Planned: -1}},
	}
	_, err := Apply(context.Background(), s, f)
	require.ErrorIs(t, err, model.ErrInvalidRecord)
	assert.Empty(t, s.therapies)
}

func TestApply_SaveErrorRollsBack(t *testing.T) {
	boom := errors.New("read-only")
	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)

	s := &recordingSaver{failPlans: boom}
	res, err := Apply(context.Background(), s, f)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, s.therapies)
	assert.Empty(t, s.plans)
}

func TestApply_IntoStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "praxis.db"), nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)
	_, err = Apply(ctx, db, f)
	require.NoError(t, err)

	c, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Therapies: 2, Plans: 2, Expenses: 3}, c)

	// re-importing the same file updates rows, with or without IDs
	_, err = Apply(ctx, db, f)
	require.NoError(t, err)
	c, err = db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Therapies: 2, Plans: 2, Expenses: 3}, c)
}

func TestApply_IntoStore_UnknownTherapyWritesNothing(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "praxis.db"), nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	f, err := Load(strings.NewReader(practiceYAML))
	require.NoError(t, err)
	f.Plans = append(f.Plans, Plan{Therapy: "ghost", Month: "2026-09", Planned: 4})

	res, err := Apply(ctx, db, f)
	require.ErrorIs(t, err, model.ErrInvalidRecord)
	assert.Equal(t, Result{}, res)

	c, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, c)

	// plans may name a therapy imported earlier
	f.Plans = nil
	_, err = Apply(ctx, db, f)
	require.NoError(t, err)
	_, err = Apply(ctx, db, &File{Plans: []Plan{{Therapy: "Massage", Month: "2026-10", Planned: 18}}})
	require.NoError(t, err)
	c, err = db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Therapies: 2, Plans: 1, Expenses: 3}, c)
}
