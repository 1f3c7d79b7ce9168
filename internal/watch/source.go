package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"geoattend-backend/config"
	"geoattend-backend/internal/geo"
)

// HTTPSource reads the device's current position from a location
// endpoint, the request shape driven entirely by config.
type HTTPSource struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPSource creates a position source for the configured endpoint.
func NewHTTPSource(cfg *config.WatcherConfig) *HTTPSource {
	return &HTTPSource{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type positionResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Error     string   `json:"error"`
}

// Current fetches a single position fix.
func (s *HTTPSource) Current(ctx context.Context) (geo.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to create position request: %w", err)
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("position request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, fmt.Errorf("position endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to read position response: %w", err)
	}

	var pr positionResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to unmarshal position response: %w", err)
	}
	if pr.Error != "" {
		return geo.Coordinate{}, fmt.Errorf("position unavailable: %s", pr.Error)
	}
	if pr.Latitude == nil || pr.Longitude == nil {
		return geo.Coordinate{}, errors.New("position response missing coordinates")
	}

	return geo.Coordinate{Lat: *pr.Latitude, Lng: *pr.Longitude}, nil
}
