package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsTable = "inventory_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded schema for the store's dialect.
func (s *SQLStore) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+string(s.dialect))
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	driver, err := s.migrationDriver()
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	// The migrate instance is not closed: closing it would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, string(s.dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) migrationDriver() (database.Driver, error) {
	switch s.dialect {
	case DialectSQLite:
		return sqlite.WithInstance(s.db, &sqlite.Config{MigrationsTable: migrationsTable})
	case DialectMySQL:
		return migratemysql.WithInstance(s.db, &migratemysql.Config{MigrationsTable: migrationsTable})
	case DialectPostgres:
		return postgres.WithInstance(s.db, &postgres.Config{MigrationsTable: migrationsTable})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", s.dialect)
	}
}
