package record

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

type sample struct {
	ID    int64     `field:"id"`
	At    time.Time `field:"at"`
	Value float64   `field:"value"`
	Label string    `field:"label"`
}

func (s sample) Feed() feed.Feed { return feed.KpIndex }

func (s sample) Key() (Key, error) {
	if s.At.IsZero() {
		return "", errors.New("no key")
	}
	return TimeKey(s.At), nil
}

func (s sample) KeyFilter() Fields { return Fields{{Name: "at", Value: s.At}} }

func (s sample) Values() Fields {
	return Fields{{Name: "value", Value: s.Value}, {Name: "label", Value: s.Label}}
}

func TestTimeKey_NormalizesZone(t *testing.T) {
	utc := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("BRT", -3*3600))
	assert.Equal(t, TimeKey(utc), TimeKey(local))
	assert.Equal(t, Key("2024-05-10T12:00:00Z"), TimeKey(utc))
	assert.Equal(t, Key("id:1"), IDKey(1))
}

func TestFields(t *testing.T) {
	fs := Fields{{Name: "a", Value: 1}, {Name: "b", Value: "x"}}
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, fs.Map())
	assert.Equal(t, []string{"a", "b"}, fs.Names())
	v, ok := fs.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = fs.Get("c")
	assert.False(t, ok)
}

func TestInsertRow(t *testing.T) {
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	row := InsertRow(sample{At: at, Value: 2.5, Label: "2M"})
	assert.Equal(t, Row{"at": at, "value": 2.5, "label": "2M"}, row)
}

func TestDecode_WeaklyTypedRows(t *testing.T) {
	cases := []struct {
		name string
		row  Row
	}{
		{"native", Row{"id": int64(7), "at": time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC), "value": 2.5, "label": "2M"}},
		{"textual", Row{"id": "7", "at": "2024-05-10 12:00:00", "value": "2.5", "label": []byte("2M")}},
		{"sqlite text", Row{"id": int64(7), "at": "2024-05-10 12:00:00+00:00", "value": float32(2.5), "label": "2M"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s sample
			require.NoError(t, Decode(tc.row, &s))
			assert.Equal(t, int64(7), s.ID)
			assert.True(t, s.At.Equal(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)))
			assert.InDelta(t, 2.5, s.Value, 1e-9)
			assert.Equal(t, "2M", s.Label)
		})
	}
}

func TestDecode_BadTimestamp(t *testing.T) {
	var s sample
	assert.Error(t, Decode(Row{"at": "yesterday"}, &s))
}

func TestIndexRows_LastDuplicateWinsAndErrorsCollected(t *testing.T) {
	t1 := "2024-05-10T12:00:00Z"
	t2 := "2024-05-10T13:00:00Z"
	rows := []Row{
		{"at": t1, "label": "first"},
		{"at": t2, "label": "second"},
		{"at": t1, "label": "third"},
		{"label": "no key"},
		{"at": "garbage"},
	}
	set, errs := IndexRows(rows, func(r Row) (sample, error) {
		var s sample
		err := Decode(r, &s)
		return s, err
	})

	assert.Len(t, errs, 2)
	assert.Equal(t, 2, set.Len())
	got, ok := set.Get(Key(t1))
	require.True(t, ok)
	assert.Equal(t, "third", got.Label)
	assert.True(t, set.Has(Key(t2)))

	records := set.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Label)
	assert.Equal(t, "second", records[1].Label)
}

func TestZeroStoredSet(t *testing.T) {
	var set StoredSet[sample]
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Has("x"))
	assert.Empty(t, set.Records())
}
