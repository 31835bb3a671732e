// Package geo resolves coordinates to a US county and state through the
// Census Bureau geocoder.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/waypoint/pkg/envelope"
)

const (
	// DefaultBaseURL is the public Census geocoder.
	DefaultBaseURL = "https://geocoding.geo.census.gov"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 10 * time.Second

	coordinatesPath = "/geocoder/geographies/coordinates"
	maxBodyBytes    = 1 << 20
)

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNoCounty           = errors.New("no county found for coordinates")
	ErrUpstream           = errors.New("geocoder request failed")
)

// Location is the county and state containing a point.
type Location struct {
	County string `json:"county"`
	State  string `json:"state"`
}

// Client queries the geocoder. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithBaseURL points the client at another geocoder deployment (or a test server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a geocoder client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// ParseCoordinates validates latitude and longitude query values.
func ParseCoordinates(latitude, longitude string) (float64, float64, error) {
	if latitude == "" || longitude == "" {
		return 0, 0, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidCoordinates)
	}
	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinates, latitude)
	}
	lon, err := strconv.ParseFloat(longitude, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinates, longitude)
	}
	return lat, lon, nil
}

// Lookup returns the county and state containing (lat, lon).
// The " County" suffix is stripped from the county name.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (Location, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("benchmark", "Public_AR_Current")
	q.Set("vintage", "Current_Current")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+coordinatesPath+"?"+q.Encode(), nil)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("geocoder unreachable", "error", err)
		return Location{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("geocoder returned error status", "status", resp.StatusCode)
		return Location{}, fmt.Errorf("%w: %s", ErrUpstream, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Location{}, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	county, err := envelope.ExtractPath(body, "result", "geographies", "Counties", "[0]", "NAME")
	if err != nil || strings.TrimSpace(county) == "" {
		return Location{}, ErrNoCounty
	}
	state, _ := envelope.ExtractPath(body, "result", "geographies", "States", "[0]", "NAME")

	return Location{
		County: strings.TrimSuffix(strings.TrimSpace(county), " County"),
		State:  strings.TrimSpace(state),
	}, nil
}
