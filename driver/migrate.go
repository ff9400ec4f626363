package driver

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"olympiad-engine/migrations"
)

// Migrate applies every pending up migration for the given driver name.
// The database handle stays open.
func Migrate(db *sql.DB, driverName string) error {
	var (
		target database.Driver
		files  fs.FS
		dir    string
		err    error
	)
	switch driverName {
	case "mysql":
		target, err = migratemysql.WithInstance(db, &migratemysql.Config{})
		files, dir = migrations.MySQL, "mysql"
	case "sqlite":
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
		files, dir = migrations.SQLite, "sqlite"
	default:
		return fmt.Errorf("unsupported driver %q", driverName)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, target)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
