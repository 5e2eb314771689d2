// Package store provides the SQLite-backed practice record store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/praxis/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// DB stores therapies, session plans and expenses.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at dbPath and applies pending migrations.
func Open(dbPath string, log *logrus.Logger) (*DB, error) {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if err := migrate(db, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", dbPath).Debug("store opened")
	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

// querier is the part of *sql.DB and *sql.Tx the store uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, or the database.
func (s *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside one transaction. Store calls made with the context
// passed to fn join it. An error from fn rolls back every write; a nested call
// joins the outer transaction.
func (s *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *DB) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Therapies returns every therapy ordered by name.
func (s *DB) Therapies(ctx context.Context) ([]model.TherapyOffering, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, name, price_per_session, variable_cost_per_session
		FROM therapies ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying therapies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TherapyOffering
	for rows.Next() {
		var t model.TherapyOffering
		if err := rows.Scan(&t.ID, &t.Name, &t.PricePerSession, &t.VariableCostPerSession); err != nil {
			return nil, fmt.Errorf("scanning therapy: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SessionPlans returns the plans whose month lies in [from, until).
// A zero from reads from the first stored month.
func (s *DB) SessionPlans(ctx context.Context, from, until time.Time) ([]model.SessionPlan, error) {
	lower := ""
	if !from.IsZero() {
		lower = model.MonthStart(from).Format(monthLayout)
	}
	upper := until.UTC().Format(monthLayout)
	if !model.MonthStart(until).Equal(until.UTC()) {
		// until falls inside a month; that month is still included
		upper = model.MonthStart(until).AddDate(0, 1, 0).Format(monthLayout)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT therapy_id, period_month, planned_sessions, actual_sessions
		FROM session_plans WHERE period_month >= ? AND period_month < ?
		ORDER BY period_month, therapy_id`, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("querying session plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SessionPlan
	for rows.Next() {
		var p model.SessionPlan
		var month string
		if err := rows.Scan(&p.TherapyID, &month, &p.PlannedSessions, &p.ActualSessions); err != nil {
			return nil, fmt.Errorf("scanning session plan: %w", err)
		}
		if p.PeriodMonth, err = time.Parse(monthLayout, month); err != nil {
			return nil, fmt.Errorf("parsing plan month %q: %w", month, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Expenses returns every expense dated before until.
func (s *DB) Expenses(ctx context.Context, until time.Time) ([]model.ExpenseRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT id, description, amount, date, is_recurring,
		recurrence_interval, spread_monthly
		FROM expenses WHERE date < ? ORDER BY date, id`, until.UTC().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ExpenseRecord
	for rows.Next() {
		var e model.ExpenseRecord
		var date, interval string
		var recurring, spread int
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &date, &recurring, &interval, &spread); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		if e.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parsing expense date %q: %w", date, err)
		}
		e.IsRecurring = recurring != 0
		e.RecurrenceInterval = model.RecurrenceInterval(interval)
		e.SpreadMonthly = spread != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveTherapy inserts or replaces t, assigning an ID when it has none.
func (s *DB) SaveTherapy(ctx context.Context, t model.TherapyOffering) (model.TherapyOffering, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO therapies
		(id, name, price_per_session, variable_cost_per_session, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_per_session = excluded.price_per_session,
			variable_cost_per_session = excluded.variable_cost_per_session,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.PricePerSession, t.VariableCostPerSession, s.stamp())
	if err != nil {
		return t, fmt.Errorf("saving therapy %q: %w", t.Name, err)
	}
	return t, nil
}

// SavePlan inserts or replaces the plan for its therapy and month.
func (s *DB) SavePlan(ctx context.Context, p model.SessionPlan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	month := model.MonthStart(p.PeriodMonth).Format(monthLayout)
	_, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO session_plans
		(therapy_id, period_month, planned_sessions, actual_sessions, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(therapy_id, period_month) DO UPDATE SET
			planned_sessions = excluded.planned_sessions,
			actual_sessions = excluded.actual_sessions,
			updated_at = excluded.updated_at`,
		p.TherapyID, month, p.PlannedSessions, p.ActualSessions, s.stamp())
	if err != nil {
		return fmt.Errorf("saving plan %s %s: %w", p.TherapyID, month, err)
	}
	return nil
}

// SaveExpense inserts or replaces e, assigning an ID when it has none.
func (s *DB) SaveExpense(ctx context.Context, e model.ExpenseRecord) (model.ExpenseRecord, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `INSERT OR REPLACE INTO expenses
		(id, description, amount, date, is_recurring, recurrence_interval, spread_monthly, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount, e.Date.UTC().Format(dateLayout),
		boolInt(e.IsRecurring), string(e.RecurrenceInterval), boolInt(e.SpreadMonthly), s.stamp())
	if err != nil {
		return e, fmt.Errorf("saving expense %q: %w", e.Description, err)
	}
	return e, nil
}

// Counts is the number of stored records per table.
type Counts struct {
	Therapies int `json:"therapies"`
	Plans     int `json:"plans"`
	Expenses  int `json:"expenses"`
}

// Counts returns the number of stored records.
func (s *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM therapies),
		(SELECT COUNT(*) FROM session_plans),
		(SELECT COUNT(*) FROM expenses)`).Scan(&c.Therapies, &c.Plans, &c.Expenses)
	if err != nil {
		return c, fmt.Errorf("counting records: %w", err)
	}
	return c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
