package weather

import (
	"context"
	"time"
)

// Geocoder resolves a free-text place name to a Location.
type Geocoder interface {
	Search(ctx context.Context, name string) (Location, error)
}

// ForecastQuery asks for hourly data from one model's forecast run.
// An empty Model lets the provider pick its default blend.
type ForecastQuery struct {
	Location  Location
	Model     string
	Variables []string
	Days      int
	PastDays  int
}

// ArchiveQuery asks for historical hourly data over an inclusive date range.
type ArchiveQuery struct {
	Location  Location
	Variables []string
	Start     time.Time
	End       time.Time
}

// ForecastClient abstracts a weather data source (e.g. Open-Meteo) able to
// serve both per-model forecasts and the historical archive.
type ForecastClient interface {
	Forecast(ctx context.Context, q ForecastQuery) (HourlySeries, error)
	Archive(ctx context.Context, q ArchiveQuery) (HourlySeries, error)
}

// Cache is the contract of the read-through cache shared across requests.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Recorder receives pipeline observations, typically for metrics.
type Recorder interface {
	ModelFetched(model string, ok bool, took time.Duration)
	EnsembleBuilt(members, configured int)
	Geocoded(ok bool)
	CacheLookup(stage string, hit bool)
	AnalysisFinished(ok bool, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ModelFetched(string, bool, time.Duration) {}
func (nopRecorder) EnsembleBuilt(int, int)                  {}
func (nopRecorder) Geocoded(bool)                           {}
func (nopRecorder) CacheLookup(string, bool)                {}
func (nopRecorder) AnalysisFinished(bool, time.Duration)    {}
