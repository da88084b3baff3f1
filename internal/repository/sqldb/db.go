// Package sqldb implements the repository interfaces on database/sql.
//
// Two backends share one code path:
//
//   - SQLite through modernc.org/sqlite (pure Go, no cgo) for local runs and tests
//   - Postgres through pgx's database/sql driver for deployments
//
// Queries are assembled with squirrel so the placeholder style (? vs $1)
// follows the backend. The schema lives in internal/migrations.
//
// SQLITE AND CONNECTIONS:
// An in-memory SQLite database exists per connection, and SQLite allows one
// writer at a time, so the SQLite pool is capped at a single connection.
// With one connection, code must never start a query while a *sql.Rows
// from an earlier query is still open: it would wait forever for the
// connection it is holding. Every List method therefore reads its rows
// into a slice and closes them before loading related data.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"              // registers the "sqlite" driver

	"github.com/sakif/recipe-api/internal/migrations"
)

// Dialect identifies the SQL backend behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// DB is the concrete store. It satisfies every interface in package repository.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// querier is the part of *sql.DB and *sql.Tx the repositories use, so the
// same helpers run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to dsn without touching the schema. A dsn starting with
// postgres:// or postgresql:// selects Postgres; anything else is a SQLite
// path (":memory:" included).
//
// sql.Open does not dial, so for Postgres an unreachable server is only
// noticed on first use. See WaitReady.
func Open(dsn string) (*DB, error) {
	dialect := DialectFromDSN(dsn)

	driver := "sqlite"
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		driver = "pgx"
		placeholder = sq.Dollar
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s database: %w", dialect, err)
	}

	db := &DB{
		conn:    conn,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
	}

	if dialect == DialectSQLite {
		conn.SetMaxOpenConns(1)
		if err := db.configureSQLite(); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return db, nil
}

// New opens dsn and brings the schema up to date. It is what the server and
// the tests use; the manage CLI calls Open and Migrate separately.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// DialectFromDSN reports which backend a connection string selects.
func DialectFromDSN(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func (db *DB) configureSQLite() error {
	// WAL lets readers proceed during a write; in-memory databases ignore it.
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("sqldb: setting WAL mode: %w", err)
	}
	// SQLite ships with foreign keys off. ON DELETE CASCADE depends on them.
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("sqldb: enabling foreign keys: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("sqldb: setting busy timeout: %w", err)
	}
	return nil
}

// Migrate applies pending migrations and returns the schema version.
func (db *DB) Migrate(ctx context.Context, logger *slog.Logger) (int64, error) {
	version, err := migrations.Up(ctx, db.conn, string(db.dialect), logger)
	if err != nil {
		return 0, fmt.Errorf("sqldb: %w", err)
	}
	return version, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// PingContext verifies the database answers. The health endpoint and
// WaitReady use it.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: committing transaction: %w", err)
	}
	return nil
}

func exec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.ExecContext(ctx, stmt, args...)
}

func queryRow(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Row, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryRowContext(ctx, stmt, args...), nil
}

func query(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryContext(ctx, stmt, args...)
}
