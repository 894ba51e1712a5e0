package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func kpAt(offset time.Duration, kpStr string) entity.KpIndex {
	return entity.KpIndex{TimeTag: base.Add(offset), Kp: kpStr}
}

func storedOf(t *testing.T, records ...entity.KpIndex) record.StoredSet[entity.KpIndex] {
	t.Helper()
	set, errs := record.IndexStored(records)
	require.Empty(t, errs)
	return set
}

func TestReconcile_EmptyStoreInsertsEverything(t *testing.T) {
	batch := []entity.KpIndex{kpAt(-2*time.Hour, "2"), kpAt(-time.Hour, "3"), kpAt(time.Hour, "4")}

	res := Reconcile(feed.KpIndex, batch, record.NewStoredSet[entity.KpIndex]())

	assert.Equal(t, batch, res.ToInsert)
	assert.Empty(t, res.ToUpdate)
	assert.Equal(t, Counts{Fetched: 3, Inserted: 3}, res.Counts())
}

func TestReconcile_PartitionsByKeyMembership(t *testing.T) {
	stored := storedOf(t, kpAt(-time.Hour, "1"), kpAt(0, "2"))
	batch := []entity.KpIndex{kpAt(-time.Hour, "3"), kpAt(time.Hour, "4"), kpAt(0, "5")}

	res := Reconcile(feed.KpIndex, batch, stored)

	require.Len(t, res.ToUpdate, 2)
	assert.Equal(t, "3", res.ToUpdate[0].Kp)
	assert.Equal(t, "5", res.ToUpdate[1].Kp)
	require.Len(t, res.ToInsert, 1)
	assert.Equal(t, "4", res.ToInsert[0].Kp)

	for _, ins := range res.ToInsert {
		k, _ := ins.Key()
		assert.False(t, stored.Has(k))
	}
	assert.Equal(t, len(batch), len(res.ToInsert)+len(res.ToUpdate))
}

func TestReconcile_SecondPassIsAllUpdates(t *testing.T) {
	batch := []entity.KpIndex{kpAt(-2*time.Hour, "2"), kpAt(-time.Hour, "3"), kpAt(time.Hour, "4")}
	first := Reconcile(feed.KpIndex, batch, record.NewStoredSet[entity.KpIndex]())

	second := Reconcile(feed.KpIndex, batch, storedOf(t, first.ToInsert...))

	assert.Empty(t, second.ToInsert)
	assert.Equal(t, batch, second.ToUpdate)
}

func TestReconcile_DuplicateKeyLastWins(t *testing.T) {
	batch := []entity.KpIndex{kpAt(0, "3"), kpAt(time.Hour, "1"), kpAt(0, "5")}

	res := Reconcile(feed.KpIndex, batch, record.NewStoredSet[entity.KpIndex]())

	require.Len(t, res.ToInsert, 2)
	assert.Equal(t, "5", res.ToInsert[0].Kp, "last duplicate supplies the payload at the first position")
	assert.Equal(t, "1", res.ToInsert[1].Kp)
	assert.Empty(t, res.ToUpdate)
	assert.Equal(t, 1, res.Superseded)
}

func TestReconcile_MalformedRecordsExcluded(t *testing.T) {
	batch := []entity.KpIndex{
		kpAt(0, "3"),
		{Kp: "4"},
		entity.KpPayload{TimeTag: "garbage", Kp: "2"}.Record(),
		kpAt(time.Hour, "1"),
	}

	res := Reconcile(feed.KpIndex, batch, storedOf(t, kpAt(0, "2")))

	assert.Len(t, res.ToUpdate, 1)
	assert.Len(t, res.ToInsert, 1)
	require.Len(t, res.Malformed, 2)
	for _, err := range res.Malformed {
		assert.True(t, exception.IsMalformed(err))
	}
	assert.ErrorIs(t, res.Malformed[0], exception.ErrNullKey)
	assert.Equal(t, 4, res.Counts().Fetched)
}

func TestReconcile_DeviceSingleton(t *testing.T) {
	first := entity.DevicePayload{IP: "1.1.1.1", City: "Recife", Loc: "-8.05,-34.9"}.Record()

	res := Reconcile(feed.Device, []entity.Device{first}, record.NewStoredSet[entity.Device]())
	assert.Len(t, res.ToInsert, 1)
	assert.Empty(t, res.ToUpdate)

	stored, _ := record.IndexStored([]entity.Device{first})
	changed := first
	changed.IP = "2.2.2.2"
	res = Reconcile(feed.Device, []entity.Device{changed}, stored)
	assert.Empty(t, res.ToInsert)
	require.Len(t, res.ToUpdate, 1)
	assert.Equal(t, "2.2.2.2", res.ToUpdate[0].IP)
}

func TestReconcile_WrongFeedIsMalformed(t *testing.T) {
	res := Reconcile(feed.Weather, []entity.KpIndex{kpAt(0, "1")}, record.NewStoredSet[entity.KpIndex]())
	assert.Empty(t, res.ToInsert)
	require.Len(t, res.Malformed, 1)
	assert.True(t, exception.IsMalformed(res.Malformed[0]))
}
