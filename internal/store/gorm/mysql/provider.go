// Package mysql registers the MySQL dialector with the gorm store.
package mysql

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/spaceweather/internal/config"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
)

func init() {
	gormstore.RegisterDialector("mysql", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN for cfg. Timestamps are parsed into time.Time and read as UTC.
func ConnectionString(c config.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	// Rows affected counts matched rows, not only changed ones.
	dsn.ClientFoundRows = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}
