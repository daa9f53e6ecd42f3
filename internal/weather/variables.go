package weather

import "math"

// Kind tells the pipeline how a missing hourly value must be treated.
type Kind int

const (
	// KindState is a continuous state (pressure, temperature, freezing level,
	// snow depth). Missing stays missing and is skipped when averaging.
	KindState Kind = iota
	// KindAccumulation is a per-hour amount or intensity (precipitation,
	// snowfall, wind, cloud cover). Missing counts as zero.
	KindAccumulation
)

func (k Kind) String() string {
	if k == KindAccumulation {
		return "accumulation"
	}
	return "state"
}

// Hourly variable names as understood by the forecast and archive endpoints.
const (
	VarTemperature   = "temperature_2m"
	VarApparentTemp  = "apparent_temperature"
	VarPrecipitation = "precipitation"
	VarSnowfall      = "snowfall"
	VarPressure      = "pressure_msl"
	VarFreezingLevel = "freezing_level_height"
	VarSnowDepth     = "snow_depth"
	VarWindSpeed     = "wind_speed_10m"
	VarWindGusts     = "wind_gusts_10m"
	VarCloudCover    = "cloud_cover"
	VarRain          = "rain"
	VarHumidity      = "relative_humidity_2m"
)

var variableKinds = map[string]Kind{
	VarTemperature:   KindState,
	VarApparentTemp:  KindState,
	VarPressure:      KindState,
	VarFreezingLevel: KindState,
	VarSnowDepth:     KindState,
	VarHumidity:      KindState,
	VarPrecipitation: KindAccumulation,
	VarRain:          KindAccumulation,
	VarSnowfall:      KindAccumulation,
	VarWindSpeed:     KindAccumulation,
	VarWindGusts:     KindAccumulation,
	VarCloudCover:    KindAccumulation,
}

// KindOf returns the missing-value policy of a variable. Unknown variables are
// treated as state so a gap is never silently read as zero.
func KindOf(name string) Kind {
	if k, ok := variableKinds[name]; ok {
		return k
	}
	return KindState
}

// Fill returns the value a missing hourly reading of the variable maps to.
func Fill(name string) float64 {
	if KindOf(name) == KindAccumulation {
		return 0
	}
	return math.NaN()
}

// DefaultVariables is the hourly set requested for an ensemble analysis.
var DefaultVariables = []string{
	VarTemperature,
	VarApparentTemp,
	VarPrecipitation,
	VarSnowfall,
	VarPressure,
	VarFreezingLevel,
	VarSnowDepth,
	VarWindSpeed,
	VarWindGusts,
	VarCloudCover,
}

// SeasonalVariables is the hourly set requested for the seasonal timeline.
var SeasonalVariables = []string{
	VarSnowfall,
	VarPrecipitation,
	VarSnowDepth,
}
