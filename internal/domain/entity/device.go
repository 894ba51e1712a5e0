package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
)

// DeviceID is the id of the single device snapshot row.
const DeviceID int64 = 1

// Device is the device/geolocation snapshot.
type Device struct {
	ID        int64  `field:"id"`
	IP        string `field:"ip"`
	Hostname  string `field:"hostname"`
	City      string `field:"city"`
	Region    string `field:"region"`
	Country   string `field:"country"`
	Longitude string `field:"longitude"`
	Latitude  string `field:"latitude"`
	Org       string `field:"org"`
	Postal    string `field:"postal"`
	Timezone  string `field:"timezone"`
}

var _ record.TimedRecord = Device{}

func (d Device) Feed() feed.Feed { return feed.Device }

// Key is the row id. Fetched snapshots carry no id and take DeviceID, so a
// stored row under any other id is never mistaken for the snapshot.
func (d Device) Key() (record.Key, error) { return record.IDKey(d.rowID()), nil }

func (d Device) KeyFilter() record.Fields {
	return record.Fields{{Name: "id", Value: d.rowID()}}
}

func (d Device) rowID() int64 {
	if d.ID == 0 {
		return DeviceID
	}
	return d.ID
}

func (d Device) Values() record.Fields {
	return record.Fields{
		{Name: "ip", Value: d.IP},
		{Name: "hostname", Value: d.Hostname},
		{Name: "city", Value: d.City},
		{Name: "region", Value: d.Region},
		{Name: "country", Value: d.Country},
		{Name: "longitude", Value: d.Longitude},
		{Name: "latitude", Value: d.Latitude},
		{Name: "org", Value: d.Org},
		{Name: "postal", Value: d.Postal},
		{Name: "timezone", Value: d.Timezone},
	}
}

// Coordinates parses the stored latitude and longitude.
func (d Device) Coordinates() (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(strings.TrimSpace(d.Latitude), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude %q: %w", d.Latitude, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(d.Longitude), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude %q: %w", d.Longitude, err)
	}
	return lat, lon, nil
}

// Properties returns the snapshot fields without the id, in column order.
func (d Device) Properties() record.Fields {
	return d.Values()
}

// DecodeDevice decodes a stored dispositivo row. NULL columns decode as empty strings.
func DecodeDevice(row record.Row) (Device, error) {
	var d Device
	if err := record.Decode(row, &d); err != nil {
		return Device{}, exception.NewMalformedRecordError(string(feed.Device), "stored row is not decodable", err)
	}
	return d, nil
}
