// Package main is the entry point for the recipe API server.
//
// MAIN PACKAGE:
// main stays minimal. Its job is to:
//  1. Read configuration (env vars and an optional .env file)
//  2. Create dependencies (logger, database, image store)
//  3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/recipe-api/internal/config"
	"github.com/sakif/recipe-api/internal/media"
	"github.com/sakif/recipe-api/internal/repository/sqldb"
	"github.com/sakif/recipe-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION & LOGGING ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	ctx := context.Background()

	// === 2. DATABASE ===
	// A SQLite file needs its directory to exist. Postgres URLs skip this.
	if sqldb.DialectFromDSN(cfg.DatabaseURL) == sqldb.DialectSQLite && cfg.DatabaseURL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqldb.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := sqldb.WaitReady(ctx, db, time.Second, cfg.DBWaitTimeout, logger); err != nil {
		db.Close()
		return err
	}
	version, err := db.Migrate(ctx, logger)
	if err != nil {
		db.Close()
		return err
	}
	logger.Info("database ready",
		slog.String("dialect", string(db.Dialect())),
		slog.Int64("schemaVersion", version),
	)

	// === 3. IMAGE STORE ===
	images, err := newImageStore(ctx, cfg)
	if err != nil {
		db.Close()
		return err
	}

	// === 4. SERVER ===
	// Start blocks until SIGINT/SIGTERM and closes the database on the way out.
	srv, err := server.New(cfg, logger, db, images)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start()
}

func newImageStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	if cfg.Media.Backend == config.MediaBackendS3 {
		return media.NewS3Store(ctx, media.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
		})
	}
	return media.NewLocalStore(cfg.Media.Root, cfg.Media.URL)
}
