// Package record defines the contract shared by every typed feed record and the
// keyed snapshot of a feed table that reconciliation runs against.
package record

import (
	"fmt"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

// Key is the normalized natural key of a record. Two records of the same feed
// describe the same logical entry if and only if their keys are equal.
type Key string

// TimeKey builds the key of a timestamp-keyed record. The instant is normalized
// to UTC so that values read back from the store compare equal to fetched ones.
func TimeKey(t time.Time) Key {
	return Key(t.UTC().Format(time.RFC3339Nano))
}

// IDKey builds the key of an id-keyed record.
func IDKey(id int64) Key {
	return Key(fmt.Sprintf("id:%d", id))
}

// Field is one named value of a record.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of named values.
type Fields []Field

// Map returns the fields as a column→value mapping.
func (fs Fields) Map() map[string]any {
	m := make(map[string]any, len(fs))
	for _, f := range fs {
		m[f.Name] = f.Value
	}
	return m
}

// Names returns the field names in order.
func (fs Fields) Names() []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

// Get returns the value of the named field.
func (fs Fields) Get(name string) (any, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Row is a stored row as returned by the Keyed Store.
type Row = map[string]any

// TimedRecord is a typed record belonging to exactly one feed.
type TimedRecord interface {
	// Feed returns the feed the record belongs to.
	Feed() feed.Feed
	// Key returns the normalized natural key. A missing or unparseable key
	// yields an error wrapping exception.ErrNullKey or the parse failure.
	Key() (Key, error)
	// KeyFilter returns the equality filter that targets the record's stored row.
	KeyFilter() Fields
	// Values returns the named non-key fields written on insert and update.
	Values() Fields
}

// Timed is implemented by records keyed by a timestamp.
type Timed interface {
	Timestamp() time.Time
}

// InsertRow returns the full row written when r is inserted.
func InsertRow(r TimedRecord) Row {
	row := r.KeyFilter().Map()
	for _, f := range r.Values() {
		row[f.Name] = f.Value
	}
	return row
}
