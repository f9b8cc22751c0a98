package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tropicaldog17/nami-portfolio/internal/db"
	"github.com/tropicaldog17/nami-portfolio/migrations"
)

func main() {
	dir := flag.String("dir", "", "directory holding NNN_name.sql files (default: the embedded set for DB_DRIVER)")
	flag.Parse()

	config := db.NewConfig()

	var driverName string
	switch config.Driver {
	case db.DriverPostgres:
		driverName = "postgres"
	case db.DriverSQLite:
		driverName = "sqlite3"
	default:
		log.Fatalf("unsupported DB_DRIVER %q", config.Driver)
	}

	var fsys fs.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	} else {
		var err error
		if fsys, err = migrations.For(config.Driver); err != nil {
			log.Fatal(err)
		}
	}

	sqlDB, err := sql.Open(driverName, config.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	loaded, err := db.LoadMigrationsFS(fsys)
	if err != nil {
		log.Fatal("Failed to load migrations:", err)
	}

	applied, err := db.ApplyMigrations(ctx, sqlDB, config.Driver, loaded)
	if err != nil {
		log.Fatalf("Failed after %d migrations: %v", applied, err)
	}
	log.Printf("Applied %d %s migrations (%d known)", applied, config.Driver, len(loaded))
}
