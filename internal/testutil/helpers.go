// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tropicaldog17/nami-portfolio/internal/db"
	"github.com/tropicaldog17/nami-portfolio/migrations"
)

var sqliteSeq atomic.Int64

// NewSQLiteDB opens a private in-memory database with the ledger schema
func NewSQLiteDB(t *testing.T) *db.DB {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, sqliteSeq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	database := &db.DB{DB: gdb}
	migrate(t, context.Background(), database, db.DriverSQLite)
	return database
}

// migrate applies the embedded schema of driver
func migrate(t *testing.T, ctx context.Context, database *db.DB, driver string) {
	t.Helper()
	fsys, err := migrations.For(driver)
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if _, err := database.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
}

// NewPostgresDB starts a PostgreSQL container, applies the migrations and
// returns a connection to it. Skipped in -short mode.
func NewPostgresDB(t *testing.T) *db.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based DB tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("portfolio_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	database := &db.DB{DB: gdb}
	t.Cleanup(func() { database.Close() })

	migrate(t, ctx, database, db.DriverPostgres)
	return database
}
