// Package migrations embeds the SQL schema and applies it with goose.
//
// The files are written in the subset of SQL that both SQLite and Postgres
// accept, so one set of migrations serves both backends.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// goose keeps its settings in package globals.
var mu sync.Mutex

// Up applies every pending migration and returns the resulting schema version.
// dialect is a goose dialect name ("sqlite3", "postgres").
func Up(ctx context.Context, db *sql.DB, dialect string, logger *slog.Logger) (int64, error) {
	if db == nil {
		return 0, errors.New("migrations: db is nil")
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(slogAdapter{logger: logger})

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("migrations: setting dialect %q: %w", dialect, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return 0, fmt.Errorf("migrations: applying: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrations: reading version: %w", err)
	}
	return version, nil
}

// slogAdapter routes goose's printf-style output into slog at debug level.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, v ...any) {
	if a.logger != nil {
		a.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	}
}

func (a slogAdapter) Fatalf(format string, v ...any) {
	if a.logger != nil {
		a.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	}
}
