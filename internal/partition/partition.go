// Package partition splits a feed's records into historical and forecast sets
// relative to a reference instant.
package partition

import (
	"slices"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/record"
)

// Result holds the two disjoint partitions of one call.
type Result[R record.Timed] struct {
	// Reference is the instant the records were compared against.
	Reference  time.Time
	Historical []R
	Forecast   []R
}

// Partition assigns every record whose timestamp is at or before ref to
// Historical and every later record to Forecast. Input order is preserved
// within each partition.
func Partition[R record.Timed](records []R, ref time.Time) Result[R] {
	res := Result[R]{Reference: ref}
	for _, r := range records {
		if r.Timestamp().After(ref) {
			res.Forecast = append(res.Forecast, r)
		} else {
			res.Historical = append(res.Historical, r)
		}
	}
	return res
}

// Stored is the storage-facing record contract for timestamp-keyed feeds.
type Stored interface {
	record.TimedRecord
	record.Timed
}

// PartitionStored partitions the records of a stored set.
func PartitionStored[R Stored](set record.StoredSet[R], ref time.Time) Result[R] {
	return Partition(set.Records(), ref)
}

// SortAscending returns a copy of records ordered oldest first. Equal timestamps keep their order.
func SortAscending[R record.Timed](records []R) []R {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b R) int {
		return a.Timestamp().Compare(b.Timestamp())
	})
	return out
}

// SortDescending returns a copy of records ordered newest first.
func SortDescending[R record.Timed](records []R) []R {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b R) int {
		return b.Timestamp().Compare(a.Timestamp())
	})
	return out
}

// LastN returns the last n elements of records, or all of them when there are fewer.
func LastN[R any](records []R, n int) []R {
	if n <= 0 {
		return nil
	}
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

// FirstN returns the first n elements of records, or all of them when there are fewer.
func FirstN[R any](records []R, n int) []R {
	if n <= 0 {
		return nil
	}
	if len(records) <= n {
		return records
	}
	return records[:n]
}
