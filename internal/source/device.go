package source

import (
	"context"
	"net/http"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

// IPInfoSource reads the device's public IP geolocation from ipinfo.io.
type IPInfoSource struct {
	endpoint string
	client   *http.Client
}

var _ DeviceSource = (*IPInfoSource)(nil)

// NewIPInfoSource creates an IPInfoSource for endpoint.
func NewIPInfoSource(endpoint string, client *http.Client) *IPInfoSource {
	return &IPInfoSource{endpoint: endpoint, client: client}
}

func (s *IPInfoSource) FetchDevice(ctx context.Context) (entity.Device, error) {
	var payload entity.DevicePayload
	if err := getJSON(ctx, s.client, string(feed.Device), s.endpoint, &payload); err != nil {
		return entity.Device{}, err
	}
	return payload.Record(), nil
}
