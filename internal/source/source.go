// Package source implements the Record Sources that pull each feed from its
// upstream HTTP API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
)

// KpSource pulls the planetary K index series.
type KpSource interface {
	FetchKp(ctx context.Context) ([]entity.KpIndex, error)
}

// WeatherSource pulls the current weather sample at a coordinate.
type WeatherSource interface {
	FetchWeather(ctx context.Context, latitude, longitude float64) ([]entity.Weather, error)
}

// DeviceSource pulls the device geolocation snapshot.
type DeviceSource interface {
	FetchDevice(ctx context.Context) (entity.Device, error)
}

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 512

// NewHTTPClient returns a client with the given timeout, or the default one when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON performs a GET against url and decodes the JSON body into out.
// Transport failures and 5xx responses are reported as retryable FetchErrors.
func getJSON(ctx context.Context, client *http.Client, module, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exception.NewFetchError(module, "failed to create API request", err, false)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return exception.NewFetchError(module, "API call failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		bodyString := strings.TrimSpace(string(bodyBytes))
		errMsg := fmt.Sprintf("error response from API: status code %d", resp.StatusCode)
		return exception.NewFetchError(module, errMsg, errors.New(bodyString), resp.StatusCode >= 500)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return exception.NewFetchError(module, "failed to decode API response", err, false)
	}
	logger.Debugf("%s: fetched %s", module, url)
	return nil
}
