package weather

import (
	"math"
	"time"
)

// Align truncates the reference time axis and every model's value arrays to
// the shortest common length. Nothing is interpolated or padded: a model
// that stops early shortens the whole ensemble. A variable a model did not
// return at all is filled according to its Kind.
func Align(ref []time.Time, series []HourlySeries, variables []string) ([]time.Time, []HourlySeries, error) {
	if len(series) == 0 {
		return nil, nil, ErrNoDataAvailable
	}

	n := len(ref)
	for _, s := range series {
		for _, v := range variables {
			if vals, ok := s.Values[v]; ok && len(vals) < n {
				n = len(vals)
			}
		}
	}
	if n == 0 {
		return nil, nil, ErrNoDataAvailable
	}

	axis := append([]time.Time(nil), ref[:n]...)
	aligned := make([]HourlySeries, 0, len(series))
	for _, s := range series {
		values := make(map[string]Series, len(variables))
		for _, v := range variables {
			src, ok := s.Values[v]
			if !ok {
				values[v] = filled(n, Fill(v))
				continue
			}
			values[v] = append(Series(nil), src[:n]...)
		}
		aligned = append(aligned, HourlySeries{
			Model:      s.Model,
			Timestamps: axis,
			Values:     values,
		})
	}
	return axis, aligned, nil
}

// Ensemble averages aligned series per variable and per timestep.
// Accumulation variables use a plain mean with missing read as zero; state
// variables use a mean over the non-missing contributors only, and stay
// missing where every contributor is missing.
func Ensemble(aligned []HourlySeries, variables []string) (EnsembleSeries, error) {
	if len(aligned) == 0 || aligned[0].Len() == 0 {
		return EnsembleSeries{}, ErrNoDataAvailable
	}

	n := aligned[0].Len()
	out := EnsembleSeries{
		Timestamps: aligned[0].Timestamps,
		Variables:  append([]string(nil), variables...),
		Values:     make(map[string]Series, len(variables)),
		Members:    make([]string, 0, len(aligned)),
	}
	for _, s := range aligned {
		out.Members = append(out.Members, s.Model)
	}

	column := make([]float64, len(aligned))
	for _, v := range variables {
		kind := KindOf(v)
		mean := make(Series, n)
		for i := 0; i < n; i++ {
			for m, s := range aligned {
				column[m] = s.Values[v][i]
			}
			if kind == KindAccumulation {
				mean[i] = zeroMean(column)
			} else {
				mean[i] = nanMean(column)
			}
		}
		out.Values[v] = mean
	}
	return out, nil
}

// nanMean is the mean of the non-NaN values, or NaN when there are none.
func nanMean(values []float64) float64 {
	var sum float64
	var count int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// zeroMean is the arithmetic mean with NaN counted as zero.
func zeroMean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum / float64(len(values))
}

func filled(n int, v float64) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = v
	}
	return s
}
