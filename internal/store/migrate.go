package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

const sqliteDialect = "sqlite3"

//go:embed migrations/*.sql
var migrations embed.FS

// migrate applies the embedded SQL migrations to db.
func migrate(db *sql.DB, log *logrus.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(log)
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
