package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/praxis/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "praxis.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "praxis.db")

	db, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	c, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)
}

func TestTherapies_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	saved, err := db.SaveTherapy(ctx, model.TherapyOffering{Name: "Physiotherapy", PricePerSession: 85, VariableCostPerSession: 4.5})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	_, err = db.SaveTherapy(ctx, model.TherapyOffering{ID: "massage", Name: "Massage", PricePerSession: 60})
	require.NoError(t, err)

	// update in place
	_, err = db.SaveTherapy(ctx, model.TherapyOffering{ID: "massage", Name: "Massage", PricePerSession: 65})
	require.NoError(t, err)

	got, err := db.Therapies(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Massage", got[0].Name)
	assert.Equal(t, 65.0, got[0].PricePerSession)
	assert.Equal(t, saved, got[1])
}

func TestSaveTherapy_RejectsInvalid(t *testing.T) {
	_, err := openTestDB(t).SaveTherapy(context.Background(), model.TherapyOffering{Name: "Broken", PricePerSession: -1})
	assert.True(t, errors.Is(err, model.ErrInvalidRecord))
}

func TestSessionPlans_Window(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.SaveTherapy(ctx, model.TherapyOffering{ID: "physio", Name: "Physiotherapy", PricePerSession: 85})
	require.NoError(t, err)

	for _, m := range []time.Month{time.July, time.August, time.September, time.October} {
		require.NoError(t, db.SavePlan(ctx, model.SessionPlan{
			TherapyID: "physio", PeriodMonth: month(2026, m), PlannedSessions: 40, ActualSessions: int(m),
		}))
	}
	// overwrite keeps one row per therapy and month
	require.NoError(t, db.SavePlan(ctx, model.SessionPlan{
		TherapyID: "physio", PeriodMonth: time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC), PlannedSessions: 30, ActualSessions: 25,
	}))

	plans, err := db.SessionPlans(ctx, month(2026, time.August), month(2026, time.October))
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, month(2026, time.August), plans[0].PeriodMonth)
	assert.Equal(t, 25, plans[0].ActualSessions)
	assert.Equal(t, month(2026, time.September), plans[1].PeriodMonth)

	all, err := db.SessionPlans(ctx, time.Time{}, month(2027, time.January))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	c, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Therapies: 1, Plans: 4}, c)
}

func TestSavePlan_UnknownTherapy(t *testing.T) {
	err := openTestDB(t).SavePlan(context.Background(), model.SessionPlan{
		TherapyID: "ghost", PeriodMonth: month(2026, time.October), PlannedSessions: 1,
	})
	assert.Error(t, err)
}

func TestExpenses_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	rent, err := db.SaveExpense(ctx, model.ExpenseRecord{
		Description: "Rent", Amount: 1500, Date: month(2026, time.January),
		IsRecurring: true, RecurrenceInterval: model.IntervalMonthly,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rent.ID)

	_, err = db.SaveExpense(ctx, model.ExpenseRecord{
		ID: "insurance", Description: "Liability insurance", Amount: 480, Date: month(2026, time.March),
		IsRecurring: true, RecurrenceInterval: model.IntervalYearly, SpreadMonthly: true,
	})
	require.NoError(t, err)
	_, err = db.SaveExpense(ctx, model.ExpenseRecord{
		ID: "couch", Description: "Treatment couch", Amount: 300, Date: time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	got, err := db.Expenses(ctx, month(2026, time.November))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rent, got[0])
	assert.True(t, got[1].SpreadMonthly)
	assert.Equal(t, model.IntervalYearly, got[1].RecurrenceInterval)

	_, err = db.SaveExpense(ctx, model.ExpenseRecord{Description: "Bad", Amount: 10, IsRecurring: true})
	assert.ErrorIs(t, err, model.ErrInvalidRecord)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := db.SaveTherapy(ctx, model.TherapyOffering{ID: "physio", Name: "Physio", Price: 85}); err != nil {
			return err
		}
		require.NoError(t, db.SavePlan(ctx, model.SessionPlan{
			TherapyID: "physio", PeriodMonth: month(2026, time.October), PlannedSessions: 10,
		}))
		got, err := db.Therapies(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)

	require.NoError(t, db.WithTx(ctx, func(ctx context.Context) error {
		_, err := db.SaveTherapy(ctx, model.TherapyOffering{ID: "physio", Name: "Physio", Price: 85})
		return err
	}))
	c, err = db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Therapies: 1}, c)
}
