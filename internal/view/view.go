// Package view builds the read models shown to downstream consumers from the
// stored feed records.
package view

import (
	"fmt"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/kp"
	"github.com/tigerroll/spaceweather/internal/partition"
)

const (
	KpHistoryRows      = 50
	KpChartPoints      = 24
	WeatherHistoryRows = 10
	TemperaturePoints  = 24
)

// KpRow is a Kp sample with its decoded value and activity level.
type KpRow struct {
	TimeTag     time.Time
	KpIndex     int
	EstimatedKp float64
	Kp          string
	KpValue     float64
	Level       kp.ActivityLevel
}

// ForecastRow is a forecast Kp sample with its confidence label.
type ForecastRow struct {
	KpRow
	Confidence kp.ConfidenceLevel
}

// Point is one chart sample.
type Point struct {
	At    time.Time
	Value float64
}

// KpDashboard is the Kp read model at a reference instant.
type KpDashboard struct {
	Reference time.Time
	// Latest is the newest historical sample, nil when there is none.
	Latest *KpRow
	// History holds the newest historical rows, newest first.
	History []KpRow
	// Forecast holds the forecast rows, oldest first.
	Forecast []ForecastRow
	// Chart is the decoded Kp of the newest historical rows, oldest first.
	Chart []Point
	// Levels counts the historical rows per activity level.
	Levels map[kp.ActivityLevel]int
}

func kpRow(k entity.KpIndex) KpRow {
	return KpRow{
		TimeTag:     k.TimeTag,
		KpIndex:     k.KpIndex,
		EstimatedKp: k.EstimatedKp,
		Kp:          k.Kp,
		KpValue:     k.KpValue(),
		Level:       k.Level(),
	}
}

// BuildKpDashboard partitions records at ref and derives the Kp read model.
func BuildKpDashboard(records []entity.KpIndex, ref time.Time) KpDashboard {
	parts := partition.Partition(records, ref)
	historical := partition.SortAscending(parts.Historical)

	d := KpDashboard{Reference: ref, Levels: map[kp.ActivityLevel]int{}}
	for _, k := range historical {
		d.Levels[k.Level()]++
	}
	if n := len(historical); n > 0 {
		latest := kpRow(historical[n-1])
		d.Latest = &latest
	}
	for _, k := range partition.FirstN(partition.SortDescending(historical), KpHistoryRows) {
		d.History = append(d.History, kpRow(k))
	}
	for _, k := range partition.SortAscending(parts.Forecast) {
		d.Forecast = append(d.Forecast, ForecastRow{KpRow: kpRow(k), Confidence: kp.Confidence(k.EstimatedKp)})
	}
	for _, k := range partition.LastN(historical, KpChartPoints) {
		d.Chart = append(d.Chart, Point{At: k.TimeTag, Value: k.KpValue()})
	}
	return d
}

// Summary is a one-line description of the dashboard for logs.
func (d KpDashboard) Summary() string {
	if d.Latest == nil {
		return fmt.Sprintf("no Kp samples yet (%d forecast)", len(d.Forecast))
	}
	return fmt.Sprintf("Kp %s (estimate %.2f, %s) at %s, %d forecast",
		d.Latest.Kp, d.Latest.EstimatedKp, d.Latest.Level, d.Latest.TimeTag.UTC().Format(time.RFC3339), len(d.Forecast))
}

// WeatherDashboard is the weather read model at a reference instant.
type WeatherDashboard struct {
	Reference time.Time
	// Latest is the newest sample at or before the reference, nil when there is none.
	Latest *entity.Weather
	// History holds the newest samples, newest first.
	History []entity.Weather
	// Temperature is the temperature of the newest samples, oldest first.
	Temperature []Point
}

// BuildWeatherDashboard derives the weather read model from records.
func BuildWeatherDashboard(records []entity.Weather, ref time.Time) WeatherDashboard {
	historical := partition.SortAscending(partition.Partition(records, ref).Historical)

	d := WeatherDashboard{Reference: ref}
	if n := len(historical); n > 0 {
		latest := historical[n-1]
		d.Latest = &latest
	}
	d.History = partition.FirstN(partition.SortDescending(historical), WeatherHistoryRows)
	for _, w := range partition.LastN(historical, TemperaturePoints) {
		d.Temperature = append(d.Temperature, Point{At: w.Hora, Value: w.Temperatura})
	}
	return d
}

// Summary is a one-line description of the dashboard for logs.
func (d WeatherDashboard) Summary() string {
	if d.Latest == nil {
		return "no weather samples yet"
	}
	return fmt.Sprintf("%.1f°C, wind %.1f km/h from %.0f° at %s",
		d.Latest.Temperatura, d.Latest.VelocidadeVent, d.Latest.DirecaoVent, d.Latest.Hora.UTC().Format(time.RFC3339))
}

// DeviceProperties lists the device snapshot fields without the row id.
func DeviceProperties(d entity.Device) record.Fields {
	return d.Properties()
}
