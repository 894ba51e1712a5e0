package entity

import (
	"strings"

	"github.com/tigerroll/spaceweather/internal/domain/record"
)

// KpPayload is one element of the NOAA SWPC planetary_k_index_1m.json array.
type KpPayload struct {
	TimeTag     string  `json:"time_tag"`
	KpIndex     int     `json:"kp_index"`
	EstimatedKp float64 `json:"estimated_kp"`
	Kp          string  `json:"kp"`
}

// Record converts the payload. time_tag carries no zone and is read as UTC; an
// unparseable value is kept raw so reconciliation can report it.
func (p KpPayload) Record() KpIndex {
	k := KpIndex{KpIndex: p.KpIndex, EstimatedKp: p.EstimatedKp, Kp: p.Kp}
	if t, err := record.ParseStoredTime(p.TimeTag); err == nil {
		k.TimeTag = t
	} else {
		k.RawTimeTag = p.TimeTag
	}
	return k
}

// CurrentWeatherPayload is the current_weather object of an Open-Meteo forecast response.
type CurrentWeatherPayload struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
}

// WeatherPayload is the Open-Meteo forecast response requested with current_weather=true.
type WeatherPayload struct {
	Latitude       float64                `json:"latitude"`
	Longitude      float64                `json:"longitude"`
	CurrentWeather *CurrentWeatherPayload `json:"current_weather"`
}

// Record converts the current sample, tagging it with the coordinates it was requested for.
func (p CurrentWeatherPayload) Record(lat, lon float64) Weather {
	w := Weather{
		Temperatura:    p.Temperature,
		VelocidadeVent: p.WindSpeed,
		DirecaoVent:    p.WindDirection,
		Latitude:       lat,
		Longitude:      lon,
	}
	if t, err := record.ParseStoredTime(p.Time); err == nil {
		w.Hora = t
	} else {
		w.RawHora = p.Time
	}
	return w
}

// DevicePayload is the ipinfo.io/json response.
type DevicePayload struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
}

// Record converts the payload, splitting loc ("lat,lon") into its two coordinates.
func (p DevicePayload) Record() Device {
	d := Device{
		ID:       DeviceID,
		IP:       p.IP,
		Hostname: p.Hostname,
		City:     p.City,
		Region:   p.Region,
		Country:  p.Country,
		Org:      p.Org,
		Postal:   p.Postal,
		Timezone: p.Timezone,
	}
	if lat, lon, ok := strings.Cut(p.Loc, ","); ok {
		d.Latitude = strings.TrimSpace(lat)
		d.Longitude = strings.TrimSpace(lon)
	}
	return d
}
