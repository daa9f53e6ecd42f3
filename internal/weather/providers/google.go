package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/meteo-ensemble/internal/weather"
)

// The geocoder package keeps its API key in a package variable.
var googleKeyOnce sync.Once

// GoogleGeocoder implements weather.Geocoder on top of the Google Geocoding
// API. Queries are read as "city" or "city, country". Google returns no
// elevation, so it stays unknown.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	googleKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

func (g *GoogleGeocoder) Search(ctx context.Context, name string) (weather.Location, error) {
	addr := parseAddress(name)
	if addr.City == "" {
		return weather.Location{}, fmt.Errorf("%w: empty query", weather.ErrLocationNotFound)
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := g.lookup(addr)
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return weather.Location{}, fmt.Errorf("%w: %v", weather.ErrLocationNotFound, r.err)
		}
		if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
			return weather.Location{}, fmt.Errorf("%w: %q", weather.ErrLocationNotFound, name)
		}
		return weather.Location{
			Latitude:  r.loc.Latitude,
			Longitude: r.loc.Longitude,
			Name:      addr.City,
			Country:   addr.Country,
		}, nil
	}
}

func parseAddress(q string) geocoder.Address {
	city, country, _ := strings.Cut(q, ",")
	return geocoder.Address{
		City:    strings.TrimSpace(city),
		Country: strings.TrimSpace(country),
	}
}
