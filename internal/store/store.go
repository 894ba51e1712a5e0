// Package store defines the Keyed Store the ingestion pipeline persists feeds into.
package store

import (
	"context"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
)

// Filter is an equality filter; all entries must match (AND).
type Filter = map[string]any

// KeyedStore is a table-oriented store with equality-filtered reads and updates.
//
// Every call is atomic on its own; there is no transaction spanning calls.
type KeyedStore interface {
	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, table string) (bool, error)
	// CreateTable creates the named table from schema. It succeeds if the table already exists.
	CreateTable(ctx context.Context, table string, schema feed.Schema) error
	// ReadAll returns every row of table matching filter. A nil or empty filter matches all rows.
	ReadAll(ctx context.Context, table string, filter Filter) ([]record.Row, error)
	// InsertBatch inserts rows with a single call.
	InsertBatch(ctx context.Context, table string, rows []record.Row) error
	// UpdateByFilter writes fields to the rows matching filter and returns the number
	// of rows the backend reports as affected. An empty filter is rejected.
	UpdateByFilter(ctx context.Context, table string, filter Filter, fields map[string]any) (int64, error)
	// Close releases the store's resources.
	Close() error
}

// EnsureSchema creates the table of f when it does not exist and reports whether it did so.
func EnsureSchema(ctx context.Context, s KeyedStore, f feed.Feed) (bool, error) {
	table := f.TableName()
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return false, exception.NewSchemaError(string(f), "check table "+table, err)
	}
	if exists {
		return false, nil
	}
	if err := s.CreateTable(ctx, table, feed.SchemaFor(f)); err != nil {
		if exception.IsSchema(err) {
			return false, err
		}
		return false, exception.NewSchemaError(string(f), "create table "+table, err)
	}
	logger.Infof("Created table '%s' for feed '%s'.", table, f)
	return true, nil
}
