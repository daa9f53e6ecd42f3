package weather

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSnowThreshold is the hourly snowfall (cm) at or below which an
	// hour counts as rain only.
	DefaultSnowThreshold = 0.1

	// PowderAlertCm is the event snowfall total that raises the powder alert.
	PowderAlertCm = 10.0

	metersToCm = 100.0
)

// StatsOptions parameterizes ComputeStats.
type StatsOptions struct {
	SnowThreshold float64
	// Now splits past from future for the future-only totals.
	Now time.Time
}

// ComputeStats derives the scalar summary of an ensemble. Missing values are
// excluded from every sum, minimum and maximum; a statistic with no valid
// input is Missing. SeasonSnowfall is left Missing for the caller to fill.
func ComputeStats(e EnsembleSeries, opts StatsOptions) (stats DerivedStats, err error) {
	if e.Len() == 0 {
		return DerivedStats{}, fmt.Errorf("%w: empty ensemble", ErrComputation)
	}
	for name, s := range e.Values {
		if len(s) != e.Len() {
			return DerivedStats{}, fmt.Errorf("%w: %s has %d values for %d timestamps", ErrComputation, name, len(s), e.Len())
		}
	}
	defer func() {
		if r := recover(); r != nil {
			stats = DerivedStats{}
			err = fmt.Errorf("%w: %v", ErrComputation, r)
		}
	}()

	threshold := opts.SnowThreshold
	if threshold <= 0 {
		threshold = DefaultSnowThreshold
	}
	future := make([]bool, e.Len())
	for i, ts := range e.Timestamps {
		future[i] = !ts.Before(opts.Now)
	}

	precip, hasPrecip := e.Get(VarPrecipitation)
	snow, hasSnow := e.Get(VarSnowfall)

	isSnowHour := func(i int) bool {
		return hasSnow && !math.IsNaN(snow[i]) && snow[i] > threshold
	}

	stats = DerivedStats{
		TotalWaterEquivalent:     Missing,
		TotalRain:                Missing,
		TotalSnowWaterEquivalent: Missing,
		TotalSnowfall:            Missing,
		FutureWaterEquivalent:    Missing,
		FutureRain:               Missing,
		FutureSnowfall:           Missing,
		MaxGust:                  Missing,
		MinPressure:              Missing,
		CurrentSnowDepth:         Missing,
		MaxSnowDepth:             Missing,
		SeasonSnowfall:           Missing,
	}

	if hasPrecip {
		stats.TotalWaterEquivalent = sumWhere(precip, nil)
		stats.TotalRain = sumWhere(precip, func(i int) bool { return !isSnowHour(i) })
		stats.TotalSnowWaterEquivalent = sumWhere(precip, isSnowHour)
		stats.FutureWaterEquivalent = sumWhere(precip, func(i int) bool { return future[i] })
		stats.FutureRain = sumWhere(precip, func(i int) bool { return future[i] && !isSnowHour(i) })
	}
	if hasSnow {
		stats.TotalSnowfall = sumWhere(snow, nil)
		stats.FutureSnowfall = sumWhere(snow, func(i int) bool { return future[i] })
		stats.PowderAlert = stats.TotalSnowfall.Valid() && float64(stats.TotalSnowfall) > PowderAlertCm
	}
	if gusts, ok := e.Get(VarWindGusts); ok {
		stats.MaxGust = maxOf(gusts)
	}
	if pressure, ok := e.Get(VarPressure); ok {
		stats.MinPressure = minOf(pressure)
	}
	if depth, ok := e.Get(VarSnowDepth); ok {
		if m := maxOf(depth); m.Valid() {
			stats.MaxSnowDepth = m * metersToCm
		}
		if c := currentValue(depth, future); c.Valid() {
			stats.CurrentSnowDepth = c * metersToCm
		}
	}
	return stats, nil
}

// valid returns the non-missing values of s whose index satisfies keep.
func valid(s Series, keep func(int) bool) []float64 {
	out := make([]float64, 0, len(s))
	for i, v := range s {
		if math.IsNaN(v) {
			continue
		}
		if keep != nil && !keep(i) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// sumWhere sums the valid values selected by keep. An empty selection of an
// otherwise present series sums to zero; a series without any valid value is
// Missing.
func sumWhere(s Series, keep func(int) bool) Scalar {
	if len(valid(s, nil)) == 0 {
		return Missing
	}
	return Scalar(floats.Sum(valid(s, keep)))
}

func maxOf(s Series) Scalar {
	v := valid(s, nil)
	if len(v) == 0 {
		return Missing
	}
	return Scalar(floats.Max(v))
}

func minOf(s Series) Scalar {
	v := valid(s, nil)
	if len(v) == 0 {
		return Missing
	}
	return Scalar(floats.Min(v))
}

// currentValue is the last valid value not in the future, falling back to the
// first valid future value when the window starts after now.
func currentValue(s Series, future []bool) Scalar {
	current := Missing
	for i, v := range s {
		if math.IsNaN(v) {
			continue
		}
		if !future[i] {
			current = Scalar(v)
			continue
		}
		if !current.Valid() {
			current = Scalar(v)
		}
		break
	}
	return current
}
