package record

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// storedTimeLayouts are the textual timestamp forms drivers hand back for
// datetime columns, most specific first.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseStoredTime parses a timestamp as stored or fetched. Values without a zone are read as UTC.
func ParseStoredTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range storedTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseStoredTime(v)
	case []byte:
		return ParseStoredTime(string(v))
	case time.Time:
		return v.UTC(), nil
	}
	return data, nil
}

// Decode copies the values of a stored row into the struct pointed to by out,
// matching columns to fields through their `field` tags. Numeric and textual
// values are converted weakly so rows from any dialect decode the same way.
func Decode(row Row, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToTimeHook,
		WeaklyTypedInput: true,
		TagName:          "field",
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(row); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
