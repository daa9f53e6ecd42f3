package weather

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Location is a resolved place for which forecasts are requested.
// Elevation is nil when unknown; the forecast provider then falls back to its
// own terrain model.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
	Name      string   `json:"name"`
	Country   string   `json:"country,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
}

// LocationFromCoordinates builds a Location for an explicit coordinate pair,
// as produced by a map click. No reverse geocoding is done.
func LocationFromCoordinates(lat, lon float64) Location {
	return Location{
		Latitude:  lat,
		Longitude: lon,
		Name:      fmt.Sprintf("%.4f, %.4f", lat, lon),
	}
}

// DisplayName returns "Name (Country)" or just the name.
func (l Location) DisplayName() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + " (" + l.Country + ")"
}

// Key returns a canonical string key for indexing this location in caches.
// Coordinates are rounded to ~100m so repeated map clicks share entries.
func (l Location) Key() string {
	return fmt.Sprintf("%.3f:%.3f", l.Latitude, l.Longitude)
}

// ModelSource is a configured numerical weather model.
type ModelSource struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// DefaultModels are the models queried when no explicit set is configured.
var DefaultModels = []ModelSource{
	{ID: "ecmwf_ifs025", Label: "ECMWF (EU)", Color: "red"},
	{ID: "gfs_seamless", Label: "GFS (USA)", Color: "blue"},
	{ID: "icon_seamless", Label: "ICON (DE)", Color: "green"},
	{ID: "jma_seamless", Label: "JMA (JP)", Color: "purple"},
}

var knownModels = []ModelSource{
	{ID: "meteofrance_seamless", Label: "ARPEGE (FR)", Color: "orange"},
	{ID: "ukmo_seamless", Label: "UKMO (UK)", Color: "brown"},
	{ID: "gem_seamless", Label: "GEM (CA)", Color: "olive"},
	{ID: "italia_meteo_arpae_icon_2i", Label: "ICON-2I (IT)", Color: "teal"},
}

// LookupModel returns the catalog entry for id, or a bare source labelled
// with the id itself.
func LookupModel(id string) ModelSource {
	for _, m := range DefaultModels {
		if m.ID == id {
			return m
		}
	}
	for _, m := range knownModels {
		if m.ID == id {
			return m
		}
	}
	return ModelSource{ID: id, Label: id, Color: "gray"}
}

// Series is an hourly value sequence. NaN marks a missing value and is
// encoded as JSON null.
type Series []float64

// MarshalJSON implements json.Marshaler.
func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	b := make([]byte, 0, len(s)*6+2)
	b = append(b, '[')
	for i, v := range s {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendFloat(b, v)
	}
	return append(b, ']'), nil
}

// Scalar is a derived value that may be unavailable (NaN), encoded as null.
type Scalar float64

// Missing is the unavailable Scalar.
var Missing = Scalar(math.NaN())

// Valid reports whether the scalar carries a value.
func (s Scalar) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return appendFloat(nil, float64(s)), nil
}

func (s Scalar) String() string {
	if !s.Valid() {
		return "n/a"
	}
	return strconv.FormatFloat(float64(s), 'f', 1, 64)
}

func appendFloat(b []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(b, "null"...)
	}
	return strconv.AppendFloat(b, v, 'f', -1, 64)
}

// HourlySeries is one model's answer to one request. Every entry of Values
// has the same length as Timestamps once decoded.
type HourlySeries struct {
	Model      string
	Timestamps []time.Time
	Values     map[string]Series
}

// Len returns the number of hourly steps on the time axis.
func (h HourlySeries) Len() int {
	return len(h.Timestamps)
}

// EnsembleSeries is the cross-model mean per variable on a common time axis.
type EnsembleSeries struct {
	Timestamps []time.Time       `json:"timestamps"`
	Variables  []string          `json:"variables"`
	Values     map[string]Series `json:"values"`
	Members    []string          `json:"members"`
}

// Len returns the aligned length.
func (e EnsembleSeries) Len() int {
	return len(e.Timestamps)
}

// Get returns the aggregated series of a variable.
func (e EnsembleSeries) Get(name string) (Series, bool) {
	s, ok := e.Values[name]
	return s, ok
}

// SeasonalRecord is one hourly step of the seasonal timeline.
type SeasonalRecord struct {
	Time          time.Time `json:"time"`
	Snowfall      Scalar    `json:"snowfallCm"`
	Precipitation Scalar    `json:"precipitationMm"`
	SnowDepth     Scalar    `json:"snowDepthM"`
}

// DailyRecord is a calendar-day roll-up of the seasonal timeline.
type DailyRecord struct {
	Date          string `json:"date"`
	Snowfall      Scalar `json:"snowfallCm"`
	Precipitation Scalar `json:"precipitationMm"`
	MaxSnowDepth  Scalar `json:"maxSnowDepthCm"`
}

// SeasonalTimeline joins the archive and the forecast into one ascending
// hourly record list starting at the season start.
type SeasonalTimeline struct {
	SeasonStart time.Time        `json:"seasonStart"`
	Records     []SeasonalRecord `json:"records"`
}

// DerivedStats is the scalar summary shown as metric tiles.
type DerivedStats struct {
	TotalWaterEquivalent     Scalar `json:"totalWaterEquivalentMm"`
	TotalRain                Scalar `json:"totalRainMm"`
	TotalSnowWaterEquivalent Scalar `json:"totalSnowWaterEquivalentMm"`
	TotalSnowfall            Scalar `json:"totalSnowfallCm"`
	FutureWaterEquivalent    Scalar `json:"futureWaterEquivalentMm"`
	FutureRain               Scalar `json:"futureRainMm"`
	FutureSnowfall           Scalar `json:"futureSnowfallCm"`
	MaxGust                  Scalar `json:"maxGustKmh"`
	MinPressure              Scalar `json:"minPressureHpa"`
	CurrentSnowDepth         Scalar `json:"currentSnowDepthCm"`
	MaxSnowDepth             Scalar `json:"maxSnowDepthCm"`
	SeasonSnowfall           Scalar `json:"seasonSnowfallCm"`
	PowderAlert              bool   `json:"powderAlert"`
}

// ModelResult is the typed outcome of one model fetch.
type ModelResult struct {
	Source ModelSource
	Series HourlySeries
	Err    error
}

// OK reports whether the model contributed data.
func (r ModelResult) OK() bool {
	return r.Err == nil
}

// ModelOutcome describes a model's participation in an analysis.
type ModelOutcome struct {
	ModelSource
	OK    bool   `json:"ok"`
	Hours int    `json:"hours,omitempty"`
	Error string `json:"error,omitempty"`
}

// Request is the explicit input of one analysis run.
type Request struct {
	Location  Location
	Days      int
	PastDays  int
	Variables []string
	Now       time.Time
}

// Analysis is the full result served to the presentation layer.
type Analysis struct {
	ID            string            `json:"id"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	Location      Location          `json:"location"`
	Models        []ModelOutcome    `json:"models"`
	Ensemble      EnsembleSeries    `json:"ensemble"`
	TraceVariable string            `json:"traceVariable"`
	Traces        map[string]Series `json:"traces"`
	Stats         DerivedStats      `json:"stats"`
}
