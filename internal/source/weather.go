package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/exception"
)

// OpenMeteoSource reads the current weather from the Open-Meteo forecast API.
type OpenMeteoSource struct {
	endpoint string
	client   *http.Client
}

var _ WeatherSource = (*OpenMeteoSource)(nil)

// NewOpenMeteoSource creates an OpenMeteoSource for endpoint.
func NewOpenMeteoSource(endpoint string, client *http.Client) *OpenMeteoSource {
	return &OpenMeteoSource{endpoint: endpoint, client: client}
}

// FetchWeather returns the current_weather sample as a single record tagged with the requested coordinates.
func (s *OpenMeteoSource) FetchWeather(ctx context.Context, latitude, longitude float64) ([]entity.Weather, error) {
	module := string(feed.Weather)
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, exception.NewFetchError(module, "invalid endpoint", err, false)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("current_weather", "true")
	u.RawQuery = q.Encode()

	var payload entity.WeatherPayload
	if err := getJSON(ctx, s.client, module, u.String(), &payload); err != nil {
		return nil, err
	}
	if payload.CurrentWeather == nil {
		return nil, exception.NewFetchError(module, "response has no current_weather", nil, false)
	}
	return []entity.Weather{payload.CurrentWeather.Record(latitude, longitude)}, nil
}
