package satellites

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
)

// DefaultEndpoint is the public N2YO satellite API.
const DefaultEndpoint = "https://api.n2yo.com/rest/v1/satellite"

// Client queries the N2YO "above" endpoint.
type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

// NewClient creates a client with a request timeout.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// Above lists the satellites of a category within radius degrees of the observer's zenith.
//
// Arguments:
//   - ctx: Bounds the request.
//   - obs: The observer.
//   - radius: The search radius in degrees, 0 to 90.
//   - category: The N2YO category, 0 for all.
//
// Returns:
//   - []Satellite: The satellites, possibly none.
//   - error: A *common.ConfigError for invalid input, or a request or response failure.
func (c *Client) Above(ctx context.Context, obs Observer, radius, category int) ([]Satellite, error) {
	if c.APIKey == "" {
		return nil, &common.ConfigError{Field: "satellites.api_key", Err: errors.New("required, set N2YO_API_KEY")}
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if radius < 0 || radius > 90 {
		return nil, &common.ConfigError{Field: "satellites.radius", Err: errors.Errorf("must be in [0, 90], got %d", radius)}
	}
	if category < 0 {
		return nil, &common.ConfigError{Field: "satellites.category", Err: errors.Errorf("must not be negative, got %d", category)}
	}

	log := logging.Module("satellites")
	path := fmt.Sprintf("%s/above/%s/%s/%s/%d/%d",
		c.Endpoint, formatFloat(obs.Latitude), formatFloat(obs.Longitude), formatFloat(obs.Altitude), radius, category)
	log.Debug("querying satellites", "url", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path+"&apiKey="+url.QueryEscape(c.APIKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "querying satellites")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("satellite service returned %s", resp.Status)
	}
	body, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "decoding satellite response")
	}
	return parseAbove(body)
}

func parseAbove(body *jason.Object) ([]Satellite, error) {
	if msg, err := body.GetString("error"); err == nil {
		return nil, errors.Errorf("satellite service: %s", msg)
	}
	count, _ := body.GetInt64("info", "satcount")
	if count == 0 {
		return nil, nil
	}
	above, err := body.GetObjectArray("above")
	if err != nil {
		return nil, nil
	}

	sats := make([]Satellite, 0, len(above))
	for _, o := range above {
		s := Satellite{Name: "Unknown"}
		if name, err := o.GetString("satname"); err == nil {
			s.Name = strings.TrimSpace(name)
		}
		s.ID, _ = o.GetInt64("satid")
		s.Latitude, _ = o.GetFloat64("satlat")
		s.Longitude, _ = o.GetFloat64("satlng")
		s.Altitude, _ = o.GetFloat64("satalt")
		sats = append(sats, s)
	}
	return sats, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
