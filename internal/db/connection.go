package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the database file for the sqlite driver
	Path string
}

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
}

// NewConfig creates a new database configuration from environment variables
func NewConfig() *Config {
	return &Config{
		Driver:   getEnv("DB_DRIVER", DriverPostgres),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5433"),
		User:     getEnv("DB_USER", "nami_user"),
		Password: getEnv("DB_PASSWORD", "nami_password"),
		Name:     getEnv("DB_NAME", "nami_portfolio"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		Path:     getEnv("DB_PATH", "portfolio.db"),
	}
}

// DSN returns the connection string for the configured driver
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Connect establishes a GORM connection to the database
func Connect(config *Config) (*DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(config.DSN())
	case DriverSQLite:
		dialector = sqlite.Open(config.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if config.Driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY between our own statements
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database connection is healthy
func (db *DB) Health() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetSQLDB returns the underlying *sql.DB
func (db *DB) GetSQLDB() (*sql.DB, error) {
	return db.DB.DB()
}

// IsPostgres reports whether the connection speaks the postgres dialect
func (db *DB) IsPostgres() bool {
	return db.Dialector.Name() == DriverPostgres
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
