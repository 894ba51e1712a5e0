package logger

import (
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// NewGormLogger returns a gorm logger writing through this package.
// level is one of "silent", "error", "warn" or "info"; anything else is silent.
func NewGormLogger(level string) gormlogger.Interface {
	var gormLevel gormlogger.LogLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		gormLevel = gormlogger.Error
	case "warn":
		gormLevel = gormlogger.Warn
	case "info":
		gormLevel = gormlogger.Info
	default:
		gormLevel = gormlogger.Silent
	}

	return gormlogger.New(
		NewGormWriter(),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormLevelFor returns the gorm log level matching the process log level:
// SQL statements are only traced when DEBUG is enabled.
func GormLevelFor(level LogLevel) string {
	if level == LevelDebug {
		return "info"
	}
	return "silent"
}

// GormWriter routes gorm output to the levelled logger.
type GormWriter struct{}

// NewGormWriter creates a new GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements gormlogger.Writer. SQL statements go to DEBUG, everything else to INFO.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isSQLTrace(msg) {
		Debugf("[GORM] %s", msg)
		return
	}
	Infof("[GORM] %s", msg)
}

func isSQLTrace(msg string) bool {
	if !strings.Contains(msg, "[") || !strings.Contains(msg, "]") {
		return false
	}
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}
