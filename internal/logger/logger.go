// Package logger is the levelled logger of the ingestion service. Lines go to
// stderr with a UTC timestamp and the level tag, e.g.
//
//	2024/05/10 12:00:00 spaceweather: [INFO] Feed 'kp_index': 0 updated, 3 inserted, 3 total.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel orders the severities; a message is written when its level is at
// or above the configured one.
type LogLevel int32

const (
	LevelDebug LogLevel = iota // per-record decisions, SQL, container events
	LevelInfo                  // cycle and feed summaries
	LevelWarn                  // a degraded cycle: skipped records, lost exports
	LevelError                 // a failed feed
	LevelFatal                 // the process cannot continue
)

var levelNames = map[string]LogLevel{
	"DEBUG": LevelDebug,
	"INFO":  LevelInfo,
	"WARN":  LevelWarn,
	"ERROR": LevelError,
	"FATAL": LevelFatal,
}

var (
	level atomic.Int32
	out   = log.New(os.Stderr, "spaceweather: ", log.LstdFlags|log.LUTC|log.Lmsgprefix)
)

func init() { level.Store(int32(LevelInfo)) }

// SetLogLevel sets the process-wide level from its name, case-insensitively.
// An unknown name selects INFO.
func SetLogLevel(name string) {
	l, ok := levelNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		out.Printf("[WARN] Unknown log level %q, using INFO.", name)
		l = LevelInfo
	}
	level.Store(int32(l))
}

// Level returns the configured level.
func Level() LogLevel { return LogLevel(level.Load()) }

func logf(l LogLevel, tag, format string, v []interface{}) {
	if Level() <= l {
		out.Output(3, fmt.Sprintf("["+tag+"] "+format, v...))
	}
}

func Debugf(format string, v ...interface{}) { logf(LevelDebug, "DEBUG", format, v) }

func Infof(format string, v ...interface{}) { logf(LevelInfo, "INFO", format, v) }

func Warnf(format string, v ...interface{}) { logf(LevelWarn, "WARN", format, v) }

func Errorf(format string, v ...interface{}) { logf(LevelError, "ERROR", format, v) }

// Fatalf logs regardless of the level and exits with status 1.
func Fatalf(format string, v ...interface{}) {
	out.Output(2, fmt.Sprintf("[FATAL] "+format, v...))
	os.Exit(1)
}
