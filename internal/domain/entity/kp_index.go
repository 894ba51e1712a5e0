// Package entity holds the typed records of each feed and the upstream payloads they are built from.
package entity

import (
	"fmt"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/kp"
)

// KpIndex is one planetary K index sample.
type KpIndex struct {
	ID          int64     `field:"id"`
	TimeTag     time.Time `field:"time_tag"`
	KpIndex     int       `field:"kp_index"`
	EstimatedKp float64   `field:"estimated_kp"`
	Kp          string    `field:"kp"`

	// RawTimeTag keeps the upstream value when it could not be parsed.
	RawTimeTag string `field:"-"`
}

var _ record.TimedRecord = KpIndex{}

func (k KpIndex) Feed() feed.Feed { return feed.KpIndex }

func (k KpIndex) Key() (record.Key, error) {
	return timeKey(feed.KpIndex, k.TimeTag, k.RawTimeTag)
}

func (k KpIndex) KeyFilter() record.Fields {
	return record.Fields{{Name: "time_tag", Value: k.TimeTag.UTC()}}
}

func (k KpIndex) Values() record.Fields {
	return record.Fields{
		{Name: "kp_index", Value: k.KpIndex},
		{Name: "estimated_kp", Value: k.EstimatedKp},
		{Name: "kp", Value: k.Kp},
	}
}

func (k KpIndex) Timestamp() time.Time { return k.TimeTag }

// KpValue returns the decoded numeric value of the displayed Kp string.
func (k KpIndex) KpValue() float64 { return kp.Parse(k.Kp) }

// Level returns the activity level of the integer Kp index.
func (k KpIndex) Level() kp.ActivityLevel { return kp.Level(k.KpIndex) }

// DecodeKpIndex decodes a stored kp_indices row.
func DecodeKpIndex(row record.Row) (KpIndex, error) {
	var k KpIndex
	if err := record.Decode(row, &k); err != nil {
		return KpIndex{}, exception.NewMalformedRecordError(string(feed.KpIndex), "stored row is not decodable", err)
	}
	return k, nil
}

func timeKey(f feed.Feed, t time.Time, raw string) (record.Key, error) {
	if !t.IsZero() {
		return record.TimeKey(t), nil
	}
	if raw != "" {
		return "", exception.NewMalformedRecordError(string(f),
			fmt.Sprintf("%s %q is not a timestamp", f.KeyField(), raw), nil)
	}
	return "", exception.NewMalformedRecordError(string(f), f.KeyField()+" is missing", exception.ErrNullKey)
}
