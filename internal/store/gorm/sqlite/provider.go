// Package sqlite registers the SQLite dialector with the gorm store.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/spaceweather/internal/config"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
)

func init() {
	gormstore.RegisterDialector("sqlite", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the database file path, which the SQLite dialector takes as its DSN.
func ConnectionString(c config.DatabaseConfig) string {
	return c.Database
}
