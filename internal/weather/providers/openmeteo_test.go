package providers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/meteo-ensemble/internal/weather"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      1,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

const forecastBody = `{
  "latitude": 46.5,
  "longitude": 11.3,
  "timezone": "UTC",
  "utc_offset_seconds": 0,
  "hourly": {
    "time": ["2025-01-14T00:00", "2025-01-14T01:00", "2025-01-14T02:00"],
    "temperature_2m": [1.5, null, -0.5],
    "precipitation": [0.2, null, 1.0]
  }
}`

func TestForecastDecodesHourly(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: fastBackoff})
	vars := []string{weather.VarTemperature, weather.VarPrecipitation, weather.VarWindGusts}
	series, err := client.Forecast(context.Background(), weather.ForecastQuery{
		Location:  weather.LocationFromCoordinates(46.5, 11.3),
		Model:     "icon_seamless",
		Variables: vars,
		Days:      3,
		PastDays:  1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := query.Load().(url.Values)
	for key, want := range map[string]string{
		"models":        "icon_seamless",
		"forecast_days": "3",
		"past_days":     "1",
		"latitude":      "46.5",
		"timezone":      "auto",
		"hourly":        strings.Join(vars, ","),
	} {
		if got := q.Get(key); got != want {
			t.Fatalf("query %s: expected %q, got %q", key, want, got)
		}
	}
	if q.Get("elevation") != "" {
		t.Fatalf("unknown elevation must not be sent")
	}

	if series.Len() != 3 || series.Model != "icon_seamless" {
		t.Fatalf("unexpected series: len=%d model=%q", series.Len(), series.Model)
	}
	if !series.Timestamps[1].Equal(time.Date(2025, 1, 14, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", series.Timestamps[1])
	}
	if !math.IsNaN(series.Values[weather.VarTemperature][1]) {
		t.Fatalf("null temperature must decode as NaN")
	}
	if series.Values[weather.VarPrecipitation][1] != 0 {
		t.Fatalf("null precipitation must decode as 0")
	}
	if _, ok := series.Values[weather.VarWindGusts]; ok {
		t.Fatalf("absent variable must be left out")
	}
}

func TestForecastMissingHourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: fastBackoff})
	_, err := client.Forecast(context.Background(), weather.ForecastQuery{Model: "gfs_seamless", Variables: weather.DefaultVariables})
	if !errors.Is(err, errMissingHourly) {
		t.Fatalf("expected errMissingHourly, got %v", err)
	}
}

func TestForecastBadRequestIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": true, "reason": "Cannot initialize WeatherVariable from invalid String value foo"}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: fastBackoff})
	_, err := client.Forecast(context.Background(), weather.ForecastQuery{Model: "m", Variables: []string{"foo"}})
	if !errors.Is(err, errBadRequest) || !strings.Contains(err.Error(), "invalid String value") {
		t.Fatalf("expected bad request with reason, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single call, got %d", n)
	}
}

func TestBadRequestsDoNotTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: fastBackoff})
	for i := 0; i < 8; i++ {
		_, err := client.Forecast(context.Background(), weather.ForecastQuery{Model: "m", Variables: []string{"foo"}})
		if errors.Is(err, errCircuitOpen) {
			t.Fatalf("call %d: breaker opened on rejected requests", i+1)
		}
		if !errors.Is(err, errBadRequest) {
			t.Fatalf("call %d: expected bad request, got %v", i+1, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 8 {
		t.Fatalf("expected every call to reach the upstream, got %d", n)
	}
	if st := client.breakers.get("m").State(); st != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", st)
	}
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	noRetry := BackoffConfig{InitialInterval: time.Millisecond}
	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: noRetry})
	for i := 0; i < 5; i++ {
		_, _ = client.Forecast(context.Background(), weather.ForecastQuery{Model: "m", Variables: []string{"foo"}})
	}
	_, err := client.Forecast(context.Background(), weather.ForecastQuery{Model: "m", Variables: []string{"foo"}})
	if !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected open breaker after five server errors, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 5 {
		t.Fatalf("expected the open breaker to short-circuit, got %d calls", n)
	}
}

func TestForecastServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ForecastURL: srv.URL, Backoff: fastBackoff})
	series, err := client.Forecast(context.Background(), weather.ForecastQuery{Model: "m", Variables: []string{weather.VarTemperature}})
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if series.Len() != 3 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected success on second call, got len=%d calls=%d", series.Len(), atomic.LoadInt32(&calls))
	}
}

func TestArchiveQueriesDateRange(t *testing.T) {
	var start, end string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, end = r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date")
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.Client(), OpenMeteoConfig{ArchiveURL: srv.URL, Backoff: fastBackoff})
	_, err := client.Archive(context.Background(), weather.ArchiveQuery{
		Variables: weather.SeasonalVariables,
		Start:     time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2024-11-01" || end != "2025-01-13" {
		t.Fatalf("unexpected range %s..%s", start, end)
	}

	_, err = client.Archive(context.Background(), weather.ArchiveQuery{
		Start: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestDecodeHourlyUsesPayloadZone(t *testing.T) {
	body := `{"timezone": "Europe/Rome", "utc_offset_seconds": 3600,
	  "hourly": {"time": ["2025-01-14T00:00"], "snowfall": [0.7]}}`
	series, err := decodeHourly(strings.NewReader(body), []string{weather.VarSnowfall})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, offset := series.Timestamps[0].Zone(); offset != 3600 {
		t.Fatalf("expected +01:00 offset, got %d", offset)
	}
}
