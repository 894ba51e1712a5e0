package source

import (
	"context"
	"net/http"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

// NOAAKpSource reads the NOAA SWPC 1-minute planetary K index.
type NOAAKpSource struct {
	endpoint string
	client   *http.Client
}

var _ KpSource = (*NOAAKpSource)(nil)

// NewNOAAKpSource creates a NOAAKpSource for endpoint.
func NewNOAAKpSource(endpoint string, client *http.Client) *NOAAKpSource {
	return &NOAAKpSource{endpoint: endpoint, client: client}
}

// FetchKp returns the records in upstream order. Records whose time_tag cannot
// be parsed are returned with the raw value so reconciliation can report them.
func (s *NOAAKpSource) FetchKp(ctx context.Context) ([]entity.KpIndex, error) {
	var payloads []entity.KpPayload
	if err := getJSON(ctx, s.client, string(feed.KpIndex), s.endpoint, &payloads); err != nil {
		return nil, err
	}
	records := make([]entity.KpIndex, 0, len(payloads))
	for _, p := range payloads {
		records = append(records, p.Record())
	}
	return records, nil
}
