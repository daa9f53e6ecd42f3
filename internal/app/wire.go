// Package app assembles the pipeline from an AppConfig. Both binaries share it.
package app

import (
	"net/http"

	"github.com/i474232898/meteo-ensemble/internal/config"
	"github.com/i474232898/meteo-ensemble/internal/metrics"
	"github.com/i474232898/meteo-ensemble/internal/store"
	"github.com/i474232898/meteo-ensemble/internal/weather"
	"github.com/i474232898/meteo-ensemble/internal/weather/providers"
)

// Components are the wired pipeline parts. Cache and Metrics are nil when
// disabled.
type Components struct {
	Service *weather.Service
	Cache   *store.MemoryCache
	Metrics *metrics.Manager
}

// Build wires providers, cache and metrics into a weather.Service.
func Build(cfg *config.AppConfig, withCache bool) *Components {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.MaxRetries

	client := providers.NewOpenMeteoClient(httpClient, providers.OpenMeteoConfig{
		ForecastURL: cfg.ForecastURL,
		ArchiveURL:  cfg.ArchiveURL,
		Backoff:     backoff,
	})

	var geocoder weather.Geocoder
	switch cfg.Geocoder {
	case "google":
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleAPIKey)
	default:
		geocoder = providers.NewOpenMeteoGeocoder(httpClient, cfg.GeocodingURL, cfg.GeocodingLanguage)
	}

	c := &Components{}
	opts := []weather.Option{
		weather.WithVariables(cfg.Variables),
		weather.WithSeasonalVariables(cfg.SeasonalVariables),
		weather.WithTraceVariable(cfg.TraceVariable),
		weather.WithModelTimeout(cfg.ModelTimeout),
		weather.WithMaxConcurrent(cfg.MaxConcurrentFetches),
		weather.WithSnowThreshold(cfg.SnowThreshold),
		weather.WithDefaultDays(cfg.DefaultDays),
		weather.WithSeasonalDays(cfg.SeasonalDays),
	}
	if withCache && cfg.CacheTTL > 0 {
		c.Cache = store.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheTTL)
		opts = append(opts, weather.WithCache(c.Cache))
	}
	if cfg.MetricsEnabled {
		c.Metrics = metrics.NewManager(metrics.WithRuntimeCollectors())
		opts = append(opts, weather.WithRecorder(c.Metrics))
	}

	c.Service = weather.NewService(client, geocoder, cfg.ModelSources(), opts...)
	return c
}
