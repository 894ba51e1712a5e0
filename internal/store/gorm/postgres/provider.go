// Package postgres registers the PostgreSQL dialector with the gorm store.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/spaceweather/internal/config"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
)

func init() {
	gormstore.RegisterDialector("postgres", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the key/value DSN expected by gorm.io/driver/postgres.
func ConnectionString(c config.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, port, c.User, c.Password, c.Database, sslmode)
}
