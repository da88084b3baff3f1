// Package main is the operator CLI for deployments.
//
// Usage:
//
//	manage migrate
//	manage wait-for-db
//	manage createsuperuser -email admin@example.com -name Admin -password ...
//	manage createstaffuser -email staff@example.com -name Staff -password ...
//
// DATABASE_URL, DB_WAIT_TIMEOUT and LOG_LEVEL are read the same way the
// server reads them, .env included.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/repository/sqldb"
	"github.com/sakif/recipe-api/internal/service"
	"github.com/sakif/recipe-api/internal/validation"
)

const usage = `usage: manage <command> [flags]

commands:
  migrate           apply pending database migrations
  wait-for-db       block until the database answers (DB_WAIT_TIMEOUT)
  createsuperuser   create an account with staff and superuser rights
  createstaffuser   create an account with staff rights
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// run executes one command. Output goes to stdout, logs and usage to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	logger := config.NewLogger(stderr, cfg.LogLevel)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "migrate":
		return migrate(ctx, cfg, logger, stdout)
	case "wait-for-db":
		return waitForDB(ctx, cfg, logger, stdout)
	case "createsuperuser":
		return createUser(ctx, cfg, logger, cmd, rest, service.RoleSuperuser, stdout, stderr)
	case "createstaffuser":
		return createUser(ctx, cfg, logger, cmd, rest, service.RoleStaff, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}
}

func open(cfg *config.Config) (*sqldb.DB, error) {
	if sqldb.DialectFromDSN(cfg.DatabaseURL) == sqldb.DialectSQLite && cfg.DatabaseURL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqldb.Open(cfg.DatabaseURL)
}

func migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	db, err := open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.Migrate(ctx, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "database at version %d\n", version)
	return nil
}

// waitForDB pings once per second until the database answers or
// DB_WAIT_TIMEOUT runs out.
func waitForDB(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	db, err := open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintln(stdout, "waiting for database...")
	if err := sqldb.WaitReady(ctx, db, time.Second, cfg.DBWaitTimeout, logger); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "database available")
	return nil
}

func createUser(ctx context.Context, cfg *config.Config, logger *slog.Logger, cmd string, args []string, role service.Role, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name (required)")
	password := fs.String("password", "", "password, 5-72 characters (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	db, err := open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// The schema may not exist yet on a fresh deployment.
	if _, err := db.Migrate(ctx, logger); err != nil {
		return err
	}

	users := service.NewUserService(db, auth.NewPasswordService(), validation.New(), logger)
	user, err := users.CreateUser(ctx, service.RegisterInput{
		Email:    *email,
		Name:     *name,
		Password: *password,
	}, role)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
			for field, msg := range appErr.Fields {
				fmt.Fprintf(stderr, "%s: %s\n", field, msg)
			}
			return errUsage
		}
		return err
	}

	fmt.Fprintf(stdout, "%s %s created (id %s)\n", role, user.Email, user.ID)
	return nil
}
