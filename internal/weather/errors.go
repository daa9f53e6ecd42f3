package weather

import "errors"

var (
	// ErrLocationNotFound is returned when a place name cannot be resolved.
	ErrLocationNotFound = errors.New("location not found")

	// ErrModelUnavailable marks a single model fetch that failed. It never
	// leaves the service; the model is dropped from the ensemble.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoDataAvailable is returned when no model produced usable data.
	ErrNoDataAvailable = errors.New("no data from any model")

	// ErrSeasonalUnavailable is returned when neither the archive nor the
	// forecast produced seasonal records.
	ErrSeasonalUnavailable = errors.New("seasonal data unavailable")

	// ErrComputation is returned by the statistics engine on input it cannot
	// summarize. The service downgrades it to ErrNoDataAvailable.
	ErrComputation = errors.New("statistics computation failed")
)
