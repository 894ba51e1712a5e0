package gorm_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/store"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
)

// setupMockStore returns a store over a MySQL dialector backed by sqlmock.
func setupMockStore(t *testing.T) (*gormstore.Store, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		sqlDB.Close()
	})
	return gormstore.New(gormDB, "mock_db", 0), mock
}

// setupSQLiteStore returns a store over a private in-memory SQLite database.
func setupSQLiteStore(t *testing.T) *gormstore.Store {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := gormstore.New(gormDB, "sqlite_test", 2)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ReadAllWithFilter(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `dispositivo` WHERE `id` = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ip", "city"}).AddRow(int64(1), "1.1.1.1", "Recife"))

	rows, err := s.ReadAll(context.Background(), "dispositivo", store.Filter{"id": int64(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1.1.1.1", rows[0]["ip"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadAllFailureIsStoreError(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `kp_indices`")).WillReturnError(assert.AnError)

	_, err := s.ReadAll(context.Background(), "kp_indices", nil)
	assert.True(t, exception.IsStore(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStore_UpdateByFilterTouchesNamedFieldsOnly(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `dispositivo` SET `city`=?,`ip`=? WHERE `id` = ?")).
		WithArgs("Olinda", "2.2.2.2", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.UpdateByFilter(context.Background(), "dispositivo",
		store.Filter{"id": int64(1)}, map[string]any{"ip": "2.2.2.2", "city": "Olinda"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateByFilterRejectsEmptyFilter(t *testing.T) {
	s, mock := setupMockStore(t)

	_, err := s.UpdateByFilter(context.Background(), "dispositivo", nil, map[string]any{"ip": "x"})
	assert.True(t, exception.IsStore(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertBatchSingleStatement(t *testing.T) {
	s, mock := setupMockStore(t)
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `kp_indices` (`estimated_kp`,`kp`,`kp_index`,`time_tag`) VALUES (?,?,?,?),(?,?,?,?)")).
		WillReturnResult(sqlmock.NewResult(1, 2))

	err := s.InsertBatch(context.Background(), "kp_indices", []record.Row{
		record.InsertRow(entity.KpIndex{TimeTag: at, KpIndex: 2, EstimatedKp: 2.33, Kp: "2Z"}),
		record.InsertRow(entity.KpIndex{TimeTag: at.Add(time.Minute), KpIndex: 3, EstimatedKp: 3.0, Kp: "3"}),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NoError(t, s.InsertBatch(context.Background(), "kp_indices", nil), "empty batches issue no statement")
}

func TestStore_CreateTableSQL(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `kp_indices` (`id` bigint AUTO_INCREMENT PRIMARY KEY, `time_tag` datetime")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.CreateTable(context.Background(), "kp_indices", feed.SchemaFor(feed.KpIndex)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTableFailureIsSchemaError(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectExec("CREATE TABLE").WillReturnError(assert.AnError)

	err := s.CreateTable(context.Background(), "clima", feed.SchemaFor(feed.Weather))
	assert.True(t, exception.IsSchema(err))
}

func TestSQLiteStore_SeriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)
	table := feed.KpIndex.TableName()

	exists, err := s.TableExists(ctx, table)
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := store.EnsureSchema(ctx, s, feed.KpIndex)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = store.EnsureSchema(ctx, s, feed.KpIndex)
	require.NoError(t, err)
	assert.False(t, created, "second call finds the table")
	require.NoError(t, s.CreateTable(ctx, table, feed.SchemaFor(feed.KpIndex)), "create is idempotent")

	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	batch := []entity.KpIndex{
		{TimeTag: at, KpIndex: 2, EstimatedKp: 2.33, Kp: "2Z"},
		{TimeTag: at.Add(time.Minute), KpIndex: 3, EstimatedKp: 3.0, Kp: "3"},
		{TimeTag: at.Add(2 * time.Minute), KpIndex: 5, EstimatedKp: 5.33, Kp: "5M"},
	}
	rows := make([]record.Row, 0, len(batch))
	for _, k := range batch {
		rows = append(rows, record.InsertRow(k))
	}
	require.NoError(t, s.InsertBatch(ctx, table, rows))

	stored, err := s.ReadAll(ctx, table, nil)
	require.NoError(t, err)
	set, errs := record.IndexRows(stored, entity.DecodeKpIndex)
	require.Empty(t, errs)
	require.Equal(t, 3, set.Len())
	for _, k := range batch {
		key, _ := k.Key()
		got, ok := set.Get(key)
		require.True(t, ok, "key %s read back", key)
		assert.Equal(t, k.Kp, got.Kp)
		assert.NotZero(t, got.ID)
	}

	target := batch[1]
	target.Kp = "4M"
	n, err := s.UpdateByFilter(ctx, table, target.KeyFilter().Map(), target.Values().Map())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	updated, err := s.ReadAll(ctx, table, target.KeyFilter().Map())
	require.NoError(t, err)
	require.Len(t, updated, 1)
	got, err := entity.DecodeKpIndex(updated[0])
	require.NoError(t, err)
	assert.Equal(t, "4M", got.Kp)
}

func TestSQLiteStore_DeviceUpdateLeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)
	_, err := store.EnsureSchema(ctx, s, feed.Device)
	require.NoError(t, err)

	first := entity.DevicePayload{IP: "1.1.1.1", City: "Recife", Loc: "-8.05,-34.9", Org: "AS1"}.Record()
	require.NoError(t, s.InsertBatch(ctx, "dispositivo", []record.Row{record.InsertRow(first)}))

	_, err = s.UpdateByFilter(ctx, "dispositivo", first.KeyFilter().Map(), map[string]any{"ip": "2.2.2.2"})
	require.NoError(t, err)

	rows, err := s.ReadAll(ctx, "dispositivo", store.Filter{"id": entity.DeviceID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	d, err := entity.DecodeDevice(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "2.2.2.2", d.IP)
	assert.Equal(t, "Recife", d.City)
	assert.Equal(t, "AS1", d.Org)
	assert.Equal(t, "-8.05", d.Latitude)
}
