// Package migration applies the versioned feed table migrations with golang-migrate.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
)

//go:embed sql
var migrationFS embed.FS

// MigrationsTable records the applied migration version.
const MigrationsTable = "schema_migrations"

const module = "migration"

func databaseDriver(dbType string, sqlDB *sql.DB) (database.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

// Up applies every pending migration for the dialect of dbConfig. It opens a
// dedicated connection, since golang-migrate closes the database it is given.
// A database that is already current is not an error.
func Up(ctx context.Context, dbConfig config.DatabaseConfig) error {
	db, err := gormstore.Connect(dbConfig)
	if err != nil {
		return exception.NewSchemaError(module, "connect for migration", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return exception.NewSchemaError(module, "get underlying sql.DB", err)
	}

	sourceDriver, err := iofs.New(migrationFS, "sql/"+dbConfig.Type)
	if err != nil {
		sqlDB.Close()
		return exception.NewSchemaError(module, "open migrations for "+dbConfig.Type, err)
	}
	dbDriver, err := databaseDriver(dbConfig.Type, sqlDB)
	if err != nil {
		sqlDB.Close()
		return exception.NewSchemaError(module, "create database driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbConfig.Type, dbDriver)
	if err != nil {
		dbDriver.Close()
		return exception.NewSchemaError(module, "create migrate instance", err)
	}
	m.Log = migrateLogger{}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	logger.Infof("Applying migrations for '%s' (table: %s).", dbConfig.Type, MigrationsTable)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewSchemaError(module, "migrate up", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return exception.NewSchemaError(module, "read migration version", err)
	}
	logger.Infof("Migrations complete: version %d (dirty: %t).", version, dirty)
	return nil
}

// migrateLogger routes golang-migrate output to the debug log.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Debugf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return logger.Level() == logger.LevelDebug
}
