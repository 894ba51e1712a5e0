package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/store"
)

const moduleName = "store"

const defaultBatchSize = 500

// errEmptyFilter is returned by UpdateByFilter when no filter is supplied.
var errEmptyFilter = errors.New("update requires a non-empty filter")

// Store is a store.KeyedStore backed by a GORM connection.
type Store struct {
	db        *gorm.DB
	name      string
	batchSize int
}

var _ store.KeyedStore = (*Store)(nil)

// New wraps db. batchSize bounds the rows per INSERT statement; non-positive values use the default.
func New(db *gorm.DB, name string, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Store{db: db, name: name, batchSize: batchSize}
}

// Name returns the connection name.
func (s *Store) Name() string { return s.name }

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) session(ctx context.Context) *gorm.DB {
	return s.db.Session(&gorm.Session{SkipDefaultTransaction: true, Context: ctx})
}

// TableExists implements store.KeyedStore.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, exception.NewStoreError(moduleName, "check table "+table, err)
	}
	return s.session(ctx).Migrator().HasTable(table), nil
}

// CreateTable implements store.KeyedStore.
func (s *Store) CreateTable(ctx context.Context, table string, sch feed.Schema) error {
	if len(sch.Columns) == 0 {
		return exception.NewSchemaError(moduleName, "schema of table "+table+" has no columns", nil)
	}
	sql, vars := s.createTableSQL(table, sch)
	if err := s.session(ctx).Exec(sql, vars...).Error; err != nil {
		return exception.NewSchemaError(moduleName, "create table "+table, err)
	}
	return nil
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS with dialect column types.
// Identifiers are passed as clause values so the dialect quotes them.
func (s *Store) createTableSQL(table string, sch feed.Schema) (string, []interface{}) {
	vars := []interface{}{clause.Table{Name: table}}
	defs := make([]string, 0, len(sch.Columns))
	for _, col := range sch.Columns {
		dataType := s.db.Dialector.DataTypeOf(schemaField(col))
		def := "? " + dataType
		if col.PrimaryKey && !strings.Contains(strings.ToUpper(dataType), "PRIMARY KEY") {
			def += " PRIMARY KEY"
		} else if !col.Nullable && !col.PrimaryKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
		vars = append(vars, clause.Column{Name: col.Name})
	}
	return "CREATE TABLE IF NOT EXISTS ? (" + strings.Join(defs, ", ") + ")", vars
}

func schemaField(col feed.Column) *schema.Field {
	f := &schema.Field{
		Name:          col.Name,
		DBName:        col.Name,
		PrimaryKey:    col.PrimaryKey,
		AutoIncrement: col.AutoIncrement,
		NotNull:       !col.Nullable,
		Size:          col.Size,
		TagSettings:   map[string]string{},
	}
	switch col.Type {
	case feed.Integer:
		f.DataType = schema.Int
		f.Size = 64
	case feed.Float:
		f.DataType = schema.Float
		f.Size = 64
	case feed.Timestamp:
		f.DataType = schema.Time
	default:
		f.DataType = schema.String
	}
	return f
}

// ReadAll implements store.KeyedStore.
func (s *Store) ReadAll(ctx context.Context, table string, filter store.Filter) ([]record.Row, error) {
	var rows []map[string]interface{}
	tx := s.session(ctx).Table(table)
	if len(filter) > 0 {
		tx = tx.Where(map[string]interface{}(filter))
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, exception.NewStoreError(moduleName, "read "+table, err)
	}
	out := make([]record.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out, nil
}

// InsertBatch implements store.KeyedStore.
func (s *Store) InsertBatch(ctx context.Context, table string, rows []record.Row) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, r)
	}
	if err := s.session(ctx).Table(table).CreateInBatches(&values, s.batchSize).Error; err != nil {
		return exception.NewStoreError(moduleName, fmt.Sprintf("insert %d rows into %s", len(rows), table), err)
	}
	return nil
}

// UpdateByFilter implements store.KeyedStore.
func (s *Store) UpdateByFilter(ctx context.Context, table string, filter store.Filter, fields map[string]any) (int64, error) {
	if len(filter) == 0 {
		return 0, exception.NewStoreError(moduleName, "update "+table, errEmptyFilter)
	}
	if len(fields) == 0 {
		return 0, nil
	}
	res := s.session(ctx).Table(table).Where(map[string]interface{}(filter)).Updates(map[string]interface{}(fields))
	if res.Error != nil {
		return 0, exception.NewStoreError(moduleName, "update "+table, res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
