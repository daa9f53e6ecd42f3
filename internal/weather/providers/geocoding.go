package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/meteo-ensemble/internal/weather"
)

const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// OpenMeteoGeocoder implements weather.Geocoder for the Open-Meteo geocoding
// API. Only the best match is requested.
type OpenMeteoGeocoder struct {
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client, baseURL, language string) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	if language == "" {
		language = "it"
	}

	return &OpenMeteoGeocoder{
		baseURL:  baseURL,
		language: language,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: gobreaker.NewCircuitBreaker(breakerSettings("openmeteo-geocoding")),
	}
}

func (g *OpenMeteoGeocoder) Search(ctx context.Context, name string) (weather.Location, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("name", name)
		values.Set("count", "1")
		values.Set("language", g.language)
		values.Set("format", "json")

		u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return weather.Location{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Name      string   `json:"name"`
			Latitude  float64  `json:"latitude"`
			Longitude float64  `json:"longitude"`
			Elevation *float64 `json:"elevation"`
			Country   string   `json:"country"`
			Timezone  string   `json:"timezone"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Location{}, fmt.Errorf("decode geocoding payload: %w", err)
	}
	if len(payload.Results) == 0 {
		return weather.Location{}, fmt.Errorf("%w: %q", weather.ErrLocationNotFound, name)
	}

	r := payload.Results[0]
	return weather.Location{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
		Name:      r.Name,
		Country:   r.Country,
		Timezone:  r.Timezone,
	}, nil
}
