// Package reconcile classifies a fetched batch against the stored snapshot of a
// feed table: records whose key is not stored are inserted, the others update
// the stored row through their named fields.
package reconcile

import (
	"fmt"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
)

// Result is the outcome of one reconciliation.
type Result[R record.TimedRecord] struct {
	// ToInsert holds records whose key was absent from the stored set.
	ToInsert []R
	// ToUpdate holds records whose key was present in the stored set.
	ToUpdate []R
	// Malformed holds one MalformedRecordError per excluded record.
	Malformed []error
	// Fetched is the size of the input batch.
	Fetched int
	// Superseded counts in-batch duplicates replaced by a later record with the same key.
	Superseded int
}

// Counts summarises a Result.
type Counts struct {
	Fetched    int
	Inserted   int
	Updated    int
	Malformed  int
	Superseded int
}

// Counts returns the record counts of r.
func (r Result[R]) Counts() Counts {
	return Counts{
		Fetched:    r.Fetched,
		Inserted:   len(r.ToInsert),
		Updated:    len(r.ToUpdate),
		Malformed:  len(r.Malformed),
		Superseded: r.Superseded,
	}
}

type entry[R record.TimedRecord] struct {
	key    record.Key
	record R
}

// Reconcile splits batch into insert and update sets by key membership in stored.
//
// Records are processed in batch order. When several records share a key the
// last one supplies the payload, at the position of the first. Records without
// a usable key, or belonging to another feed, are excluded and reported in
// Result.Malformed. The input slices are not modified.
func Reconcile[R record.TimedRecord](f feed.Feed, batch []R, stored record.StoredSet[R]) Result[R] {
	res := Result[R]{Fetched: len(batch)}

	entries := make([]entry[R], 0, len(batch))
	position := make(map[record.Key]int, len(batch))
	for i, r := range batch {
		if r.Feed() != f {
			res.Malformed = append(res.Malformed, exception.NewMalformedRecordError(string(f),
				fmt.Sprintf("record %d belongs to feed %s", i, r.Feed()), nil))
			continue
		}
		k, err := r.Key()
		if err != nil {
			res.Malformed = append(res.Malformed, malformed(f, i, err))
			continue
		}
		if at, seen := position[k]; seen {
			entries[at].record = r
			res.Superseded++
			continue
		}
		position[k] = len(entries)
		entries = append(entries, entry[R]{key: k, record: r})
	}

	for _, e := range entries {
		if stored.Has(e.key) {
			res.ToUpdate = append(res.ToUpdate, e.record)
		} else {
			res.ToInsert = append(res.ToInsert, e.record)
		}
	}
	return res
}

func malformed(f feed.Feed, index int, err error) error {
	if exception.IsMalformed(err) {
		return err
	}
	return exception.NewMalformedRecordError(string(f), fmt.Sprintf("record %d has no usable key", index), err)
}
