// Package feed identifies the ingested data feeds and describes the tables that hold them.
package feed

import "fmt"

// Feed names one external data stream.
type Feed string

const (
	// KpIndex is the NOAA planetary K index series.
	KpIndex Feed = "kp_index"
	// Weather is the current-weather sample series for the device location.
	Weather Feed = "weather"
	// Device is the singleton device/geolocation snapshot.
	Device Feed = "device"
)

// All returns every known feed in declaration order.
func All() []Feed {
	return []Feed{KpIndex, Weather, Device}
}

// Parse converts a feed name into a Feed.
func Parse(name string) (Feed, error) {
	for _, f := range All() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feed %q", name)
}

func (f Feed) String() string { return string(f) }

// TableName returns the table that stores the feed.
func (f Feed) TableName() string {
	switch f {
	case KpIndex:
		return "kp_indices"
	case Weather:
		return "clima"
	case Device:
		return "dispositivo"
	}
	return ""
}

// KeyField returns the column that identifies a record of the feed.
func (f Feed) KeyField() string {
	switch f {
	case KpIndex:
		return "time_tag"
	case Weather:
		return "hora"
	case Device:
		return "id"
	}
	return ""
}

// IsSeries reports whether the feed is keyed by timestamp (as opposed to the device singleton).
func (f Feed) IsSeries() bool {
	return f == KpIndex || f == Weather
}
