// Package memory provides an in-process Keyed Store. Rows live in maps guarded
// by a mutex and are copied on every read and write.
package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/store"
)

const moduleName = "memory_store"

type table struct {
	schema feed.Schema
	rows   []record.Row
	nextID int64
}

// Store is a store.KeyedStore held in memory.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var _ store.KeyedStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{tables: map[string]*table{}}
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, exception.NewStoreError(moduleName, "check table "+name, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok, nil
}

func (s *Store) CreateTable(ctx context.Context, name string, schema feed.Schema) error {
	if err := ctx.Err(); err != nil {
		return exception.NewSchemaError(moduleName, "create table "+name, err)
	}
	if len(schema.Columns) == 0 {
		return exception.NewSchemaError(moduleName, "schema of table "+name+" has no columns", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = &table{schema: schema, nextID: 1}
	}
	return nil
}

func (s *Store) ReadAll(ctx context.Context, name string, filter store.Filter) ([]record.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, exception.NewStoreError(moduleName, "read "+name, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(name)
	if err != nil {
		return nil, exception.NewStoreError(moduleName, "read "+name, err)
	}
	out := make([]record.Row, 0, len(t.rows))
	for _, row := range t.rows {
		if matches(row, filter) {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

func (s *Store) InsertBatch(ctx context.Context, name string, rows []record.Row) error {
	if err := ctx.Err(); err != nil {
		return exception.NewStoreError(moduleName, "insert into "+name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return exception.NewStoreError(moduleName, "insert into "+name, err)
	}
	prepared := make([]record.Row, 0, len(rows))
	nextID := t.nextID
	for _, row := range rows {
		r, err := t.prepare(row, &nextID)
		if err != nil {
			return exception.NewStoreError(moduleName, "insert into "+name, err)
		}
		prepared = append(prepared, r)
	}
	t.rows = append(t.rows, prepared...)
	t.nextID = nextID
	return nil
}

func (s *Store) UpdateByFilter(ctx context.Context, name string, filter store.Filter, fields map[string]any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, exception.NewStoreError(moduleName, "update "+name, err)
	}
	if len(filter) == 0 {
		return 0, exception.NewStoreError(moduleName, "update "+name, errors.New("update requires a non-empty filter"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(name)
	if err != nil {
		return 0, exception.NewStoreError(moduleName, "update "+name, err)
	}
	for col := range fields {
		if _, ok := t.schema.Column(col); !ok {
			return 0, exception.NewStoreError(moduleName, "update "+name, fmt.Errorf("unknown column %q", col))
		}
	}
	var affected int64
	for _, row := range t.rows {
		if !matches(row, filter) {
			continue
		}
		for col, v := range fields {
			row[col] = v
		}
		affected++
	}
	return affected, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return t, nil
}

// prepare validates row against the schema and assigns the auto-increment id.
func (t *table) prepare(row record.Row, nextID *int64) (record.Row, error) {
	out := make(record.Row, len(t.schema.Columns))
	for col := range row {
		if _, ok := t.schema.Column(col); !ok {
			return nil, fmt.Errorf("unknown column %q", col)
		}
	}
	for _, col := range t.schema.Columns {
		v, present := row[col.Name]
		if col.AutoIncrement {
			if id, ok := toInt64(v); present && ok {
				if id >= *nextID {
					*nextID = id + 1
				}
				out[col.Name] = id
				continue
			}
			out[col.Name] = *nextID
			*nextID++
			continue
		}
		if (!present || v == nil) && !col.Nullable {
			return nil, fmt.Errorf("column %q cannot be null", col.Name)
		}
		out[col.Name] = v
	}
	return out, nil
}

func matches(row record.Row, filter store.Filter) bool {
	for col, want := range filter {
		if !equal(row[col], want) {
			return false
		}
	}
	return true
}

// equal compares stored and filter values, treating numbers of any width and
// instants in any zone as equal when they denote the same value.
func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

func toInt64(v any) (int64, bool) {
	f, ok := toFloat(v)
	return int64(f), ok
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func copyRow(row record.Row) record.Row {
	out := make(record.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
