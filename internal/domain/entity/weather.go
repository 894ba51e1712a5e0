package entity

import (
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
)

// Weather is one current-weather sample at the device location.
type Weather struct {
	ID             int64     `field:"id"`
	Hora           time.Time `field:"hora"`
	Temperatura    float64   `field:"temperatura"`
	VelocidadeVent float64   `field:"velocidade_vent"`
	DirecaoVent    float64   `field:"direcao_vent"`
	Latitude       float64   `field:"latitude"`
	Longitude      float64   `field:"longitude"`

	RawHora string `field:"-"`
}

var _ record.TimedRecord = Weather{}

func (w Weather) Feed() feed.Feed { return feed.Weather }

func (w Weather) Key() (record.Key, error) {
	return timeKey(feed.Weather, w.Hora, w.RawHora)
}

func (w Weather) KeyFilter() record.Fields {
	return record.Fields{{Name: "hora", Value: w.Hora.UTC()}}
}

func (w Weather) Values() record.Fields {
	return record.Fields{
		{Name: "temperatura", Value: w.Temperatura},
		{Name: "velocidade_vent", Value: w.VelocidadeVent},
		{Name: "direcao_vent", Value: w.DirecaoVent},
		{Name: "latitude", Value: w.Latitude},
		{Name: "longitude", Value: w.Longitude},
	}
}

func (w Weather) Timestamp() time.Time { return w.Hora }

// DecodeWeather decodes a stored clima row.
func DecodeWeather(row record.Row) (Weather, error) {
	var w Weather
	if err := record.Decode(row, &w); err != nil {
		return Weather{}, exception.NewMalformedRecordError(string(feed.Weather), "stored row is not decodable", err)
	}
	return w, nil
}
