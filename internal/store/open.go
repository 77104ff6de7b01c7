package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gitlab.com/dirk.krummacker/contact-cards/internal/store/migrations"
	_ "modernc.org/sqlite"
)

// Supported values for the database driver setting.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// OpenDatabase opens a connection pool for the given driver. SQLite is limited to a single
// connection so that in-memory databases are shared and writers never contend.
func OpenDatabase(driver, dsn string) (*sql.DB, error) {
	var sqlDB *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		sqlDB, err = sql.Open("sqlite", dsn)
		if err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	case DriverMySQL:
		sqlDB, err = sql.Open("mysql", dsn)
	case DriverPostgres:
		sqlDB, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return sqlDB, nil
}

// NewMigrator returns a goose provider for the embedded migrations.
func NewMigrator(sqlDB *sql.DB, driver string) (*goose.Provider, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, sqlDB, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate brings the schema up to date with the embedded migrations.
func Migrate(ctx context.Context, sqlDB *sql.DB, driver string) ([]*goose.MigrationResult, error) {
	provider, err := NewMigrator(sqlDB, driver)
	if err != nil {
		return nil, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("failed to run migrations: %w", err)
	}
	return results, nil
}

// NewRepository builds the repository implementation matching the driver.
func NewRepository(sqlDB *sql.DB, driver string) (Repository, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLRepository(sqlDB, "sqlite3")
	case DriverMySQL:
		return NewSQLRepository(sqlDB, "mysql")
	case DriverPostgres:
		return NewGormRepository(sqlDB)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	case DriverMySQL:
		return goose.DialectMySQL, nil
	case DriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
