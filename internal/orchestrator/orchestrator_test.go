package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/metrics"
	"github.com/tigerroll/spaceweather/internal/store"
	"github.com/tigerroll/spaceweather/internal/store/memory"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

type kpSourceMock struct{ mock.Mock }

func (m *kpSourceMock) FetchKp(ctx context.Context) ([]entity.KpIndex, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]entity.KpIndex)
	return recs, args.Error(1)
}

type weatherSourceMock struct{ mock.Mock }

func (m *weatherSourceMock) FetchWeather(ctx context.Context, lat, lon float64) ([]entity.Weather, error) {
	args := m.Called(ctx, lat, lon)
	recs, _ := args.Get(0).([]entity.Weather)
	return recs, args.Error(1)
}

type deviceSourceMock struct{ mock.Mock }

func (m *deviceSourceMock) FetchDevice(ctx context.Context) (entity.Device, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).(entity.Device)
	return d, args.Error(1)
}

type exportCall struct {
	feed       feed.Feed
	ref        time.Time
	historical []record.TimedRecord
	forecast   []record.TimedRecord
}

type fakeExporter struct {
	calls []exportCall
	err   error
}

func (e *fakeExporter) Export(_ context.Context, f feed.Feed, ref time.Time, historical, forecast []record.TimedRecord) error {
	e.calls = append(e.calls, exportCall{f, ref, historical, forecast})
	return e.err
}

type capturingRecorder struct {
	mu       sync.Mutex
	feeds    []metrics.FeedOutcome
	cycles   int
	failures []int
}

func (r *capturingRecorder) RecordFeed(_ context.Context, o metrics.FeedOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, o)
}

func (r *capturingRecorder) RecordCycle(_ context.Context, _ time.Duration, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	r.failures = append(r.failures, failed)
}

func (r *capturingRecorder) RecordSkippedCycle(context.Context) {}

// failingStore fails the named operation on every table.
type failingStore struct {
	*memory.Store
	failInsert bool
}

func (s *failingStore) InsertBatch(ctx context.Context, table string, rows []record.Row) error {
	if s.failInsert {
		return exception.NewStoreError("test_store", "insert refused", errors.New("disk full"))
	}
	return s.Store.InsertBatch(ctx, table, rows)
}

// staleStore reports every update as matching no row.
type staleStore struct {
	*memory.Store
}

func (s *staleStore) UpdateByFilter(ctx context.Context, table string, filter store.Filter, fields map[string]any) (int64, error) {
	return 0, nil
}

// slowDeviceStore delays every read of the device table.
type slowDeviceStore struct {
	*memory.Store
	delay time.Duration
}

func (s *slowDeviceStore) TableExists(ctx context.Context, table string) (bool, error) {
	s.wait(table)
	return s.Store.TableExists(ctx, table)
}

func (s *slowDeviceStore) ReadAll(ctx context.Context, table string, filter store.Filter) ([]record.Row, error) {
	s.wait(table)
	return s.Store.ReadAll(ctx, table, filter)
}

func (s *slowDeviceStore) wait(table string) {
	if table == feed.Device.TableName() {
		time.Sleep(s.delay)
	}
}

func kpBatch() []entity.KpIndex {
	return []entity.KpIndex{
		{TimeTag: now.Add(-2 * time.Hour), KpIndex: 2, EstimatedKp: 2.33, Kp: "2M"},
		{TimeTag: now.Add(-time.Hour), KpIndex: 3, EstimatedKp: 3.0, Kp: "3"},
		{TimeTag: now.Add(time.Hour), KpIndex: 5, EstimatedKp: 0.9, Kp: "5Z"},
	}
}

func recife() entity.Device {
	return entity.Device{IP: "1.1.1.1", Hostname: "host", City: "Recife", Region: "PE", Country: "BR",
		Latitude: "-8.05", Longitude: "-34.9", Org: "AS1", Postal: "50000", Timezone: "America/Recife"}
}

func TestRunCycle_KpEndToEnd(t *testing.T) {
	st := memory.New()
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(kpBatch(), nil).Twice()
	exp := &fakeExporter{}

	o, err := New(st, Sources{Kp: kpSrc}, WithClock(fixedClock), WithExporter(exp))
	require.NoError(t, err)

	first := o.RunCycle(context.Background())
	require.NoError(t, first.Err())
	rep, ok := first.Feed(feed.KpIndex)
	require.True(t, ok)
	assert.True(t, rep.SchemaCreated)
	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, 3, rep.Inserted)
	assert.Equal(t, 0, rep.Updated)
	assert.Equal(t, 2, rep.Historical)
	assert.Equal(t, 1, rep.Forecast)

	second := o.RunCycle(context.Background())
	require.NoError(t, second.Err())
	rep, _ = second.Feed(feed.KpIndex)
	assert.False(t, rep.SchemaCreated)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 3, rep.Updated)

	rows, err := st.ReadAll(context.Background(), feed.KpIndex.TableName(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.Len(t, exp.calls, 2)
	assert.Equal(t, now, exp.calls[0].ref)
	assert.Len(t, exp.calls[0].historical, 2)
	require.Len(t, exp.calls[0].forecast, 1)
	assert.Equal(t, "5Z", exp.calls[0].forecast[0].(entity.KpIndex).Kp)
	assert.NotEqual(t, first.ID, second.ID)
	kpSrc.AssertExpectations(t)
}

func TestRunCycle_DeviceInsertThenScopedUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	changed := recife()
	changed.IP = "2.2.2.2"
	devSrc := new(deviceSourceMock)
	devSrc.On("FetchDevice", mock.Anything).Return(recife(), nil).Once()
	devSrc.On("FetchDevice", mock.Anything).Return(changed, nil).Once()

	o, err := New(st, Sources{Device: devSrc})
	require.NoError(t, err)

	rep, _ := o.RunCycle(ctx).Feed(feed.Device)
	require.NoError(t, rep.Err)
	assert.Equal(t, 1, rep.Inserted)

	rep, _ = o.RunCycle(ctx).Feed(feed.Device)
	require.NoError(t, rep.Err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 1, rep.Updated)

	rows, err := st.ReadAll(ctx, feed.Device.TableName(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2.2.2.2", rows[0]["ip"])
	assert.Equal(t, "Recife", rows[0]["city"])
	assert.Equal(t, int64(1), rows[0]["id"])
}

func TestRunCycle_DeviceRowUnderOtherIDIsNotUpdated(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, err := store.EnsureSchema(ctx, st, feed.Device)
	require.NoError(t, err)
	require.NoError(t, st.InsertBatch(ctx, feed.Device.TableName(), []record.Row{{"id": int64(2), "ip": "old"}}))

	fetched := recife()
	fetched.ID = entity.DeviceID
	fetched.IP = "new"
	devSrc := new(deviceSourceMock)
	devSrc.On("FetchDevice", mock.Anything).Return(fetched, nil)

	o, err := New(st, Sources{Device: devSrc})
	require.NoError(t, err)

	rep, _ := o.RunCycle(ctx).Feed(feed.Device)
	require.NoError(t, rep.Err)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 0, rep.Updated)

	rows, err := st.ReadAll(ctx, feed.Device.TableName(), store.Filter{"id": entity.DeviceID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0]["ip"])

	rows, err = st.ReadAll(ctx, feed.Device.TableName(), store.Filter{"id": int64(2)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "old", rows[0]["ip"], "the unrelated row is left alone")
}

func TestRunCycle_UpdateMatchingNoRowIsNotCounted(t *testing.T) {
	ctx := context.Background()
	st := &staleStore{Store: memory.New()}
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(kpBatch(), nil)

	o, err := New(st, Sources{Kp: kpSrc}, WithClock(fixedClock))
	require.NoError(t, err)

	first, _ := o.RunCycle(ctx).Feed(feed.KpIndex)
	require.NoError(t, first.Err)
	assert.Equal(t, 3, first.Inserted)

	second, _ := o.RunCycle(ctx).Feed(feed.KpIndex)
	require.NoError(t, second.Err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Unmatched)
}

func TestRunCycle_WeatherUsesDeviceCoordinates(t *testing.T) {
	st := memory.New()
	devSrc := new(deviceSourceMock)
	devSrc.On("FetchDevice", mock.Anything).Return(recife(), nil)
	wSrc := new(weatherSourceMock)
	wSrc.On("FetchWeather", mock.Anything, -8.05, -34.9).Return([]entity.Weather{
		{Hora: now.Add(-15 * time.Minute), Temperatura: 27.1, VelocidadeVent: 12, DirecaoVent: 90, Latitude: -8.05, Longitude: -34.9},
	}, nil)

	o, err := New(st, Sources{Weather: wSrc, Device: devSrc}, WithClock(fixedClock))
	require.NoError(t, err)
	assert.Equal(t, []feed.Feed{feed.Device, feed.Weather}, o.Feeds())

	report := o.RunCycle(context.Background())
	require.NoError(t, report.Err())
	rep, _ := report.Feed(feed.Weather)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Historical)
	wSrc.AssertExpectations(t)
}

func TestRunCycle_WeatherFailsFastWithoutDeviceSnapshot(t *testing.T) {
	wSrc := new(weatherSourceMock)

	o, err := New(memory.New(), Sources{Weather: wSrc})
	require.NoError(t, err)

	rep, _ := o.RunCycle(context.Background()).Feed(feed.Weather)
	require.Error(t, rep.Err)
	assert.True(t, exception.IsFetch(rep.Err))
	assert.ErrorIs(t, rep.Err, exception.ErrDeviceSnapshotMissing)
	wSrc.AssertNotCalled(t, "FetchWeather", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_WeatherFailsFastWithoutLocation(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, err := store.EnsureSchema(ctx, st, feed.Device)
	require.NoError(t, err)
	require.NoError(t, st.InsertBatch(ctx, feed.Device.TableName(), []record.Row{record.InsertRow(entity.Device{IP: "1.1.1.1"})}))
	wSrc := new(weatherSourceMock)

	o, err := New(st, Sources{Weather: wSrc})
	require.NoError(t, err)

	rep, _ := o.RunCycle(ctx).Feed(feed.Weather)
	assert.ErrorIs(t, rep.Err, exception.ErrDeviceSnapshotMissing)
	wSrc.AssertNotCalled(t, "FetchWeather", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_FeedFailureDoesNotStopOthers(t *testing.T) {
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(nil, exception.NewFetchError("kp_index", "status 503", nil, true))
	devSrc := new(deviceSourceMock)
	devSrc.On("FetchDevice", mock.Anything).Return(recife(), nil)
	wSrc := new(weatherSourceMock)
	wSrc.On("FetchWeather", mock.Anything, mock.Anything, mock.Anything).Return([]entity.Weather{{Hora: now, Temperatura: 20}}, nil)
	rec := &capturingRecorder{}

	o, err := New(memory.New(), Sources{Kp: kpSrc, Weather: wSrc, Device: devSrc}, WithRecorder(rec), WithClock(fixedClock))
	require.NoError(t, err)

	report := o.RunCycle(context.Background())
	require.Len(t, report.Feeds, 3)
	assert.Equal(t, 1, report.FailedFeeds())
	assert.Error(t, report.Err())

	kpRep, _ := report.Feed(feed.KpIndex)
	assert.True(t, exception.IsFetch(kpRep.Err))
	weatherRep, _ := report.Feed(feed.Weather)
	assert.NoError(t, weatherRep.Err)
	assert.Equal(t, 1, weatherRep.Inserted)

	assert.Len(t, rec.feeds, 3)
	assert.Equal(t, 1, rec.cycles)
	assert.Equal(t, []int{1}, rec.failures)
}

func TestRunCycle_UnclassifiedFetchErrorBecomesFetchError(t *testing.T) {
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(nil, errors.New("boom"))

	o, err := New(memory.New(), Sources{Kp: kpSrc})
	require.NoError(t, err)

	rep, _ := o.RunCycle(context.Background()).Feed(feed.KpIndex)
	assert.True(t, exception.IsFetch(rep.Err))
}

func TestRunCycle_MalformedRecordsAreExcluded(t *testing.T) {
	batch := append(kpBatch(), entity.KpIndex{RawTimeTag: "yesterday", Kp: "1"}, entity.KpIndex{Kp: "1"})
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(batch, nil)

	o, err := New(memory.New(), Sources{Kp: kpSrc}, WithClock(fixedClock))
	require.NoError(t, err)

	report := o.RunCycle(context.Background())
	rep, _ := report.Feed(feed.KpIndex)
	assert.NoError(t, rep.Err)
	assert.Equal(t, 5, rep.Fetched)
	assert.Equal(t, 3, rep.Inserted)
	require.Len(t, rep.Malformed, 2)
	assert.True(t, exception.IsMalformed(rep.Malformed[0]))
	assert.ErrorIs(t, rep.Malformed[1], exception.ErrNullKey)
	assert.Error(t, report.Err(), "malformed records are surfaced in the cycle error")
	assert.Equal(t, 0, report.FailedFeeds())
}

func TestRunCycle_DuplicateKeysLastWins(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	batch := []entity.KpIndex{
		{TimeTag: now, KpIndex: 3, Kp: "3"},
		{TimeTag: now, KpIndex: 5, Kp: "5"},
	}
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(batch, nil)

	o, err := New(st, Sources{Kp: kpSrc}, WithClock(fixedClock))
	require.NoError(t, err)

	rep, _ := o.RunCycle(ctx).Feed(feed.KpIndex)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Superseded)

	rows, err := st.ReadAll(ctx, feed.KpIndex.TableName(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0]["kp"])
}

func TestRunCycle_StoreErrorIsReported(t *testing.T) {
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(kpBatch(), nil)
	devSrc := new(deviceSourceMock)
	devSrc.On("FetchDevice", mock.Anything).Return(recife(), nil)

	o, err := New(&failingStore{Store: memory.New(), failInsert: true}, Sources{Kp: kpSrc, Device: devSrc})
	require.NoError(t, err)

	report := o.RunCycle(context.Background())
	assert.Equal(t, 2, report.FailedFeeds())
	for _, rep := range report.Feeds {
		assert.True(t, exception.IsStore(rep.Err), rep.Feed)
		assert.Equal(t, 0, rep.Inserted)
	}
}

func TestRunCycle_ExportFailureKeepsFeedSuccessful(t *testing.T) {
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Return(kpBatch(), nil)
	exp := &fakeExporter{err: errors.New("bucket missing")}

	o, err := New(memory.New(), Sources{Kp: kpSrc}, WithExporter(exp), WithClock(fixedClock))
	require.NoError(t, err)

	report := o.RunCycle(context.Background())
	rep, _ := report.Feed(feed.KpIndex)
	assert.NoError(t, rep.Err)
	assert.Error(t, rep.ExportErr)
	assert.Equal(t, 0, report.FailedFeeds())
	assert.Error(t, report.Err())
}

func TestRunCycle_CancelledContext(t *testing.T) {
	kpSrc := new(kpSourceMock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := New(memory.New(), Sources{Kp: kpSrc})
	require.NoError(t, err)

	report := o.RunCycle(ctx)
	require.Len(t, report.Feeds, 1)
	assert.ErrorIs(t, report.Feeds[0].Err, context.Canceled)
	kpSrc.AssertNotCalled(t, "FetchKp", mock.Anything)
}

func TestRunCycle_CallTimeout(t *testing.T) {
	kpSrc := new(kpSourceMock)
	kpSrc.On("FetchKp", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, exception.NewFetchError("kp_index", "timed out", context.DeadlineExceeded, true))

	o, err := New(memory.New(), Sources{Kp: kpSrc}, WithCallTimeout(20*time.Millisecond))
	require.NoError(t, err)

	rep, _ := o.RunCycle(context.Background()).Feed(feed.KpIndex)
	assert.True(t, exception.IsFetch(rep.Err))
	assert.ErrorIs(t, rep.Err, context.DeadlineExceeded)
}

func TestRunCycle_WeatherCallsHaveSeparateTimeouts(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_, err := store.EnsureSchema(ctx, mem, feed.Device)
	require.NoError(t, err)
	require.NoError(t, mem.InsertBatch(ctx, feed.Device.TableName(), []record.Row{record.InsertRow(recife())}))

	wSrc := new(weatherSourceMock)
	wSrc.On("FetchWeather", mock.Anything, -8.05, -34.9).Run(func(mock.Arguments) {
		time.Sleep(60 * time.Millisecond)
	}).Return([]entity.Weather{{Hora: now, Temperatura: 27}}, nil)

	st := &slowDeviceStore{Store: mem, delay: 60 * time.Millisecond}
	o, err := New(st, Sources{Weather: wSrc}, WithCallTimeout(100*time.Millisecond), WithClock(fixedClock))
	require.NoError(t, err)

	rep, _ := o.RunCycle(ctx).Feed(feed.Weather)
	require.NoError(t, rep.Err, "snapshot reads and the fetch together exceed one timeout")
	assert.Equal(t, 1, rep.Inserted)
}
