// Package database provides database setup, models, and data access layer (Store).
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/getout/app/internal/config"
	"github.com/getout/app/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const driverName = "sqlite"

// defaultPragmas are appended to plain file paths.
var defaultPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// Open connects to the SQLite database at cfg.Path without touching the schema.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dbName := ExtractDBNameFromPath(cfg.Path)
	if dir := filepath.Dir(dbName); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
		}
	}

	db, err := sqlx.Connect(driverName, buildDSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// NewDB connects, applies migrations, and returns a new database connection pool.
func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(db.DB, ExtractDBNameFromPath(cfg.Path)); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "path", cfg.Path)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// ApplyMigrations runs all pending up migrations from the embedded files.
func ApplyMigrations(db *sql.DB, dbName string) error {
	migrator, err := newMigrator(db, dbName)
	if err != nil {
		return err
	}

	slog.Info("Applying database migrations...", "database_name", dbName)

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied successfully.")
	return nil
}

// RollbackMigrations runs every down migration, dropping all tables.
func RollbackMigrations(db *sql.DB, dbName string) error {
	migrator, err := newMigrator(db, dbName)
	if err != nil {
		return err
	}

	slog.Info("Rolling back database migrations...", "database_name", dbName)

	if err := migrator.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No database migrations to roll back.")
			return nil
		}
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	slog.Info("Database migrations rolled back successfully.")
	return nil
}

// SchemaVersion reports the current migration version and dirty flag.
// A database without any applied migration reports version 0.
func SchemaVersion(db *sql.DB, dbName string) (uint, bool, error) {
	migrator, err := newMigrator(db, dbName)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}

// newMigrator builds a migrate instance over db. The instance is never closed:
// closing it would close db as well.
func newMigrator(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("database connection is nil, cannot run migrations")
	}
	if dbName == "" {
		return nil, errors.New("database name/path for migration driver is empty")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: dbName})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, driverName, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return migrator, nil
}

// ExtractDBNameFromPath extracts the database file path from a possibly URL-formatted path.
// This handles both simple file paths and paths with URL-style encoding.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}

	return path
}

// buildDSN appends default pragmas unless the caller already supplied a query.
func buildDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}

	params := url.Values{}
	for _, p := range defaultPragmas {
		params.Add("_pragma", p)
	}
	return path + "?" + params.Encode()
}
