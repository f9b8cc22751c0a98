package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Migration is one numbered SQL file, e.g. "001_initial_schema.sql"
type Migration struct {
	ID       int
	Filename string
	Content  string
}

// LoadMigrations reads every NNN_name.sql file in dir, ordered by NNN
func LoadMigrations(dir string) ([]Migration, error) {
	return LoadMigrationsFS(os.DirFS(dir))
}

// LoadMigrationsFS reads every NNN_name.sql file at the root of fsys
func LoadMigrationsFS(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(file.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}
		migrations = append(migrations, Migration{
			ID:       id,
			Filename: file.Name(),
			Content:  string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// Migrate applies the migrations in fsys to this connection
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	migrations, err := LoadMigrationsFS(fsys)
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}
	sqlDB, err := db.GetSQLDB()
	if err != nil {
		return 0, err
	}
	driver := DriverSQLite
	if db.IsPostgres() {
		driver = DriverPostgres
	}
	return ApplyMigrations(ctx, sqlDB, driver, migrations)
}

// ApplyMigrations runs every migration newer than the recorded schema
// version, each in its own transaction, and returns how many ran.
func ApplyMigrations(ctx context.Context, sqlDB *sql.DB, driver string, migrations []Migration) (int, error) {
	// CURRENT_TIMESTAMP is valid in both dialects
	if _, err := sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := sqlDB.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.ID <= current {
			continue
		}
		if err := runMigration(ctx, sqlDB, driver, m); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.ID, m.Filename, err)
		}
		applied++
	}
	return applied, nil
}

func runMigration(ctx context.Context, sqlDB *sql.DB, driver string, m Migration) error {
	record := "INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)"
	if driver == DriverSQLite {
		record = "INSERT INTO schema_migrations (version, filename) VALUES (?, ?)"
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Content); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, m.ID, m.Filename); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
