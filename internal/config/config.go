package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/i474232898/meteo-ensemble/internal/log"
	"github.com/i474232898/meteo-ensemble/internal/weather"
)

const envPrefix = "METEO_"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file and environment loading failures.
	ErrLoadConfig = errors.New("load config failed")
)

// AppConfig is the process configuration.
type AppConfig struct {
	LogLevel string `koanf:"log_level"`
	Addr     string `koanf:"addr"`

	// Outbound HTTP. ModelTimeout bounds each single model call.
	HTTPTimeout          time.Duration `koanf:"http_timeout"`
	ModelTimeout         time.Duration `koanf:"model_timeout"`
	MaxRetries           int           `koanf:"max_retries"`
	MaxConcurrentFetches int           `koanf:"max_concurrent_fetches"`

	ForecastURL       string `koanf:"forecast_url"`
	ArchiveURL        string `koanf:"archive_url"`
	GeocodingURL      string `koanf:"geocoding_url"`
	GeocodingLanguage string `koanf:"geocoding_language"`

	// Geocoder selects the place-name backend: "open-meteo" or "google".
	Geocoder     string `koanf:"geocoder"`
	GoogleAPIKey string `koanf:"google_api_key"`

	Models            []string `koanf:"models"`
	Variables         []string `koanf:"variables"`
	SeasonalVariables []string `koanf:"seasonal_variables"`
	TraceVariable     string   `koanf:"trace_variable"`

	DefaultDays   int     `koanf:"default_days"`
	MaxDays       int     `koanf:"max_days"`
	SeasonalDays  int     `koanf:"seasonal_days"`
	SnowThreshold float64 `koanf:"snow_threshold"`

	// One staleness window for every cached pipeline stage.
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`

	WarmInterval  time.Duration `koanf:"warm_interval"`
	WarmLocations []string      `koanf:"warm_locations"`

	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// listKeys are the env keys holding lists, with their separator. Place
// names may contain commas, so warm locations are split on semicolons.
var listKeys = map[string]string{
	"models":             ",",
	"variables":          ",",
	"seasonal_variables": ",",
	"warm_locations":     ";",
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// New returns a config holding the defaults.
func New() *AppConfig {
	models := make([]string, 0, len(weather.DefaultModels))
	for _, m := range weather.DefaultModels {
		models = append(models, m.ID)
	}

	return &AppConfig{
		LogLevel:             "info",
		Addr:                 ":8080",
		HTTPTimeout:          10 * time.Second,
		ModelTimeout:         8 * time.Second,
		MaxRetries:           1,
		MaxConcurrentFetches: 8,
		GeocodingLanguage:    "it",
		Geocoder:             "open-meteo",
		Models:               models,
		Variables:            append([]string(nil), weather.DefaultVariables...),
		SeasonalVariables:    append([]string(nil), weather.SeasonalVariables...),
		TraceVariable:        weather.VarTemperature,
		DefaultDays:          3,
		MaxDays:              16,
		SeasonalDays:         7,
		SnowThreshold:        weather.DefaultSnowThreshold,
		CacheTTL:             time.Hour,
		CacheMaxEntries:      256,
		WarmInterval:         30 * time.Minute,
		MetricsEnabled:       true,
	}
}

// Load builds the config by layering, low to high precedence:
//  1. defaults (New)
//  2. YAML file named by METEO_CONFIG
//  3. METEO_* environment variables, after an optional .env file is loaded
//  4. PORT, for the listen address
func Load(_ context.Context) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// METEO_CACHE_TTL -> cache_ttl (flat keys, underscores preserved).
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if sep, ok := listKeys[key]; ok {
			return key, splitList(value, sep)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv(envPrefix+"ADDR") == "" {
		cfg.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *AppConfig) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(c.Models) == 0:
		return fmt.Errorf("%w: at least one model is required", ErrInvalidConfig)
	case len(c.Variables) == 0:
		return fmt.Errorf("%w: at least one hourly variable is required", ErrInvalidConfig)
	case c.MaxDays < 1 || c.MaxDays > 16:
		return fmt.Errorf("%w: max_days must be within 1..16", ErrInvalidConfig)
	case c.DefaultDays < 1 || c.DefaultDays > c.MaxDays:
		return fmt.Errorf("%w: default_days must be within 1..max_days", ErrInvalidConfig)
	case c.ModelTimeout <= 0:
		return fmt.Errorf("%w: model_timeout must be positive", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	case c.SnowThreshold <= 0:
		return fmt.Errorf("%w: snow_threshold must be positive", ErrInvalidConfig)
	}

	switch c.Geocoder {
	case "open-meteo":
	case "google":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("%w: google geocoder requires google_api_key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown geocoder %q", ErrInvalidConfig, c.Geocoder)
	}
	return nil
}

// ModelSources resolves the configured model ids against the catalog.
func (c *AppConfig) ModelSources() []weather.ModelSource {
	out := make([]weather.ModelSource, 0, len(c.Models))
	for _, id := range c.Models {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, weather.LookupModel(id))
	}
	return out
}
