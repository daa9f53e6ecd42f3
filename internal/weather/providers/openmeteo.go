package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/meteo-ensemble/internal/weather"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	hourlyTimeLayout = "2006-01-02T15:04"
	dateLayout       = "2006-01-02"
)

var errMissingHourly = errors.New("response has no hourly block")

// OpenMeteoClient implements weather.ForecastClient for the Open-Meteo
// forecast and archive endpoints.
type OpenMeteoClient struct {
	forecastURL string
	archiveURL  string
	httpCfg     HTTPClientConfig
	breakers    *breakerSet
}

// OpenMeteoConfig holds endpoint overrides; empty fields use the public API.
type OpenMeteoConfig struct {
	ForecastURL string
	ArchiveURL  string
	Backoff     BackoffConfig
}

func NewOpenMeteoClient(client *http.Client, cfg OpenMeteoConfig) *OpenMeteoClient {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &OpenMeteoClient{
		forecastURL: cfg.ForecastURL,
		archiveURL:  cfg.ArchiveURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		breakers: newBreakerSet("openmeteo"),
	}
}

// Forecast fetches hourly forecast data for one model.
func (c *OpenMeteoClient) Forecast(ctx context.Context, q weather.ForecastQuery) (weather.HourlySeries, error) {
	values := locationValues(q.Location, q.Variables)
	if q.Model != "" {
		values.Set("models", q.Model)
	}
	if q.Days > 0 {
		values.Set("forecast_days", strconv.Itoa(q.Days))
	}
	if q.PastDays > 0 {
		values.Set("past_days", strconv.Itoa(q.PastDays))
	}

	key := q.Model
	if key == "" {
		key = "default"
	}
	series, err := c.get(ctx, c.forecastURL, values, key, q.Variables)
	if err != nil {
		return weather.HourlySeries{}, fmt.Errorf("openmeteo forecast %s: %w", key, err)
	}
	series.Model = q.Model
	return series, nil
}

// Archive fetches historical hourly data over an inclusive date range.
func (c *OpenMeteoClient) Archive(ctx context.Context, q weather.ArchiveQuery) (weather.HourlySeries, error) {
	if q.End.Before(q.Start) {
		return weather.HourlySeries{}, fmt.Errorf("openmeteo archive: end %s before start %s",
			q.End.Format(dateLayout), q.Start.Format(dateLayout))
	}

	values := locationValues(q.Location, q.Variables)
	values.Set("start_date", q.Start.Format(dateLayout))
	values.Set("end_date", q.End.Format(dateLayout))

	series, err := c.get(ctx, c.archiveURL, values, "archive", q.Variables)
	if err != nil {
		return weather.HourlySeries{}, fmt.Errorf("openmeteo archive: %w", err)
	}
	return series, nil
}

func (c *OpenMeteoClient) get(ctx context.Context, baseURL string, values url.Values, breaker string, variables []string) (weather.HourlySeries, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.breakers.get(breaker), buildRequest)
	if err != nil {
		return weather.HourlySeries{}, err
	}
	defer resp.Body.Close()

	return decodeHourly(resp.Body, variables)
}

func locationValues(loc weather.Location, variables []string) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	if loc.Elevation != nil {
		values.Set("elevation", strconv.FormatFloat(*loc.Elevation, 'f', -1, 64))
	}
	values.Set("hourly", strings.Join(variables, ","))
	values.Set("timezone", "auto")
	return values
}

type hourlyPayload struct {
	Timezone         string                     `json:"timezone"`
	UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
	Hourly           map[string]json.RawMessage `json:"hourly"`
}

// decodeHourly maps an hourly payload onto a HourlySeries. Null readings
// become zero for accumulation variables and NaN for state variables. A
// requested variable absent from the payload is left out; the aligner fills
// it.
func decodeHourly(r io.Reader, variables []string) (weather.HourlySeries, error) {
	var payload hourlyPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return weather.HourlySeries{}, fmt.Errorf("decode hourly payload: %w", err)
	}
	rawTimes, ok := payload.Hourly["time"]
	if payload.Hourly == nil || !ok {
		return weather.HourlySeries{}, errMissingHourly
	}

	var times []string
	if err := json.Unmarshal(rawTimes, &times); err != nil {
		return weather.HourlySeries{}, fmt.Errorf("decode hourly time: %w", err)
	}

	zone := payloadZone(payload.Timezone, payload.UTCOffsetSeconds)
	timestamps := make([]time.Time, 0, len(times))
	for _, t := range times {
		ts, err := time.ParseInLocation(hourlyTimeLayout, t, zone)
		if err != nil {
			return weather.HourlySeries{}, fmt.Errorf("parse hourly time %q: %w", t, err)
		}
		timestamps = append(timestamps, ts)
	}

	values := make(map[string]weather.Series, len(variables))
	for _, v := range variables {
		raw, ok := payload.Hourly[v]
		if !ok {
			continue
		}
		var readings []*float64
		if err := json.Unmarshal(raw, &readings); err != nil {
			return weather.HourlySeries{}, fmt.Errorf("decode hourly %s: %w", v, err)
		}
		fill := weather.Fill(v)
		series := make(weather.Series, len(readings))
		for i, r := range readings {
			if r == nil {
				series[i] = fill
				continue
			}
			series[i] = *r
		}
		values[v] = series
	}

	return weather.HourlySeries{Timestamps: timestamps, Values: values}, nil
}

func payloadZone(name string, offsetSeconds int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if offsetSeconds == 0 && (name == "" || name == "GMT" || name == "UTC") {
		return time.UTC
	}
	return time.FixedZone(name, offsetSeconds)
}
