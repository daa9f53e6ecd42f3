package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func setenv(vars map[string]string) func() {
	for k, v := range vars {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range vars {
			_ = os.Unsetenv(k)
		}
	}
}

func TestLoad(t *testing.T) {
	convey.Convey("Given the configuration loader", t, func() {
		ctx := context.Background()

		convey.Convey("When no overrides are set", func() {
			cfg, err := Load(ctx)

			convey.Convey("Then the defaults apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Models, convey.ShouldResemble, []string{"ecmwf_ifs025", "gfs_seamless", "icon_seamless", "jma_seamless"})
				convey.So(cfg.DefaultDays, convey.ShouldEqual, 3)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, time.Hour)
				convey.So(cfg.Geocoder, convey.ShouldEqual, "open-meteo")
			})
		})

		convey.Convey("When METEO_ variables are set", func() {
			defer setenv(map[string]string{
				"METEO_MODELS":         "gfs_seamless, icon_seamless",
				"METEO_WARM_LOCATIONS": "Bormio, IT;Livigno",
				"METEO_CACHE_TTL":      "30m",
				"METEO_MAX_RETRIES":    "3",
				"METEO_SNOW_THRESHOLD": "0.2",
				"METEO_ADDR":           ":9000",
			})()
			cfg, err := Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Models, convey.ShouldResemble, []string{"gfs_seamless", "icon_seamless"})
				convey.So(cfg.WarmLocations, convey.ShouldResemble, []string{"Bormio, IT", "Livigno"})
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.MaxRetries, convey.ShouldEqual, 3)
				convey.So(cfg.SnowThreshold, convey.ShouldAlmostEqual, 0.2)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
			})
		})

		convey.Convey("When only PORT is set", func() {
			defer setenv(map[string]string{"PORT": "7070"})()
			cfg, err := Load(ctx)

			convey.Convey("Then it becomes the listen address", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When a YAML file is named", func() {
			path := filepath.Join(t.TempDir(), "meteo.yaml")
			yaml := "max_days: 10\ndefault_days: 5\nmodels:\n  - icon_seamless\ngeocoding_language: en\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			defer setenv(map[string]string{
				"METEO_CONFIG":       path,
				"METEO_DEFAULT_DAYS": "7",
			})()
			cfg, err := Load(ctx)

			convey.Convey("Then the file is layered under the environment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxDays, convey.ShouldEqual, 10)
				convey.So(cfg.DefaultDays, convey.ShouldEqual, 7)
				convey.So(cfg.Models, convey.ShouldResemble, []string{"icon_seamless"})
				convey.So(cfg.GeocodingLanguage, convey.ShouldEqual, "en")
			})
		})

		convey.Convey("When the named file does not exist", func() {
			defer setenv(map[string]string{"METEO_CONFIG": "/nonexistent/meteo.yaml"})()
			_, err := Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values are out of range", func() {
			defer setenv(map[string]string{"METEO_DEFAULT_DAYS": "20"})()
			_, err := Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := New()

		convey.Convey("It is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("The google geocoder requires an API key", func() {
			cfg.Geocoder = "google"
			convey.So(errors.Is(cfg.Validate(), ErrInvalidConfig), convey.ShouldBeTrue)
			cfg.GoogleAPIKey = "key"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("An unknown geocoder is rejected", func() {
			cfg.Geocoder = "nominatim"
			convey.So(errors.Is(cfg.Validate(), ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An empty model list is rejected", func() {
			cfg.Models = nil
			convey.So(errors.Is(cfg.Validate(), ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestModelSources(t *testing.T) {
	convey.Convey("Given configured model ids", t, func() {
		cfg := New()
		cfg.Models = []string{"icon_seamless", " ", "custom_model"}

		convey.Convey("Known ids resolve to the catalog and unknown ids pass through", func() {
			sources := cfg.ModelSources()
			convey.So(len(sources), convey.ShouldEqual, 2)
			convey.So(sources[0].ID, convey.ShouldEqual, "icon_seamless")
			convey.So(sources[0].Label, convey.ShouldNotBeEmpty)
			convey.So(sources[1].ID, convey.ShouldEqual, "custom_model")
		})
	})
}
