// Command meteo-report runs one ensemble analysis and prints it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/i474232898/meteo-ensemble/internal/app"
	"github.com/i474232898/meteo-ensemble/internal/config"
	"github.com/i474232898/meteo-ensemble/internal/log"
	"github.com/i474232898/meteo-ensemble/internal/weather"
)

type options struct {
	place    string
	lat      float64
	lon      float64
	days     int
	pastDays int
	seasonal bool
	format   string
	timeout  time.Duration
	logLevel string
}

func main() {
	var opts options
	fs := flag.NewFlagSet("meteo-report", flag.ExitOnError)
	fs.StringVarP(&opts.place, "place", "p", "", "place name to geocode")
	fs.Float64Var(&opts.lat, "lat", 0, "latitude, used with --lon instead of --place")
	fs.Float64Var(&opts.lon, "lon", 0, "longitude, used with --lat instead of --place")
	fs.IntVarP(&opts.days, "days", "d", 0, "forecast days (default from config)")
	fs.IntVar(&opts.pastDays, "past-days", 0, "past days to include (0..92)")
	fs.BoolVar(&opts.seasonal, "seasonal", false, "print the season-to-date timeline instead")
	fs.StringVarP(&opts.format, "format", "f", "text", "output format: text, json or csv")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	_ = fs.Parse(os.Args[1:])

	if err := log.Init(opts.logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	hasCoords := fs.Changed("lat") || fs.Changed("lon")
	switch {
	case opts.place == "" && !hasCoords:
		fail(2, "either --place or --lat/--lon is required")
	case opts.place != "" && hasCoords:
		fail(2, "use either --place or --lat/--lon, not both")
	case hasCoords && !(fs.Changed("lat") && fs.Changed("lon")):
		fail(2, "--lat and --lon must be given together")
	case opts.pastDays < 0 || opts.pastDays > 92:
		fail(2, "--past-days must be within 0..92")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		fail(1, err.Error())
	}
	if opts.days < 0 || opts.days > cfg.MaxDays {
		fail(2, fmt.Sprintf("--days must be within 1..%d", cfg.MaxDays))
	}

	service := app.Build(cfg, false).Service

	loc := weather.LocationFromCoordinates(opts.lat, opts.lon)
	if opts.place != "" {
		if loc, err = service.Resolve(ctx, opts.place); err != nil {
			fail(1, describe(err))
		}
	}

	if opts.seasonal {
		timeline, err := service.Seasonal(ctx, loc, time.Time{})
		if err != nil {
			fail(1, describe(err))
		}
		err = printSeasonal(os.Stdout, opts.format, loc, timeline)
		if err != nil {
			fail(1, err.Error())
		}
		return
	}

	analysis, err := service.Analyze(ctx, weather.Request{
		Location: loc,
		Days:     opts.days,
		PastDays: opts.pastDays,
	})
	if err != nil {
		fail(1, describe(err))
	}
	if err := printAnalysis(os.Stdout, opts.format, analysis); err != nil {
		fail(1, err.Error())
	}
}

func fail(code int, msg string) {
	fmt.Fprintln(os.Stderr, "meteo-report:", msg)
	os.Exit(code)
}

func describe(err error) string {
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		return "location not found"
	case errors.Is(err, weather.ErrNoDataAvailable):
		return "no data from any weather model for this location"
	case errors.Is(err, weather.ErrSeasonalUnavailable):
		return "seasonal data unavailable for this location"
	default:
		return err.Error()
	}
}

func printAnalysis(w io.Writer, format string, a weather.Analysis) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case "csv":
		return weather.WriteEnsembleCSV(w, a.Ensemble)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	fmt.Fprintf(w, "%s  (%.4f, %.4f)\n", a.Location.DisplayName(), a.Location.Latitude, a.Location.Longitude)
	fmt.Fprintf(w, "generated %s, %d hours\n\n", a.GeneratedAt.Format(time.RFC3339), a.Ensemble.Len())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSTATUS\tHOURS")
	for _, m := range a.Models {
		status := "ok"
		if !m.OK {
			status = "unavailable"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Label, status, m.Hours)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := a.Stats
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value weather.Scalar
		unit  string
	}{
		{"total water equivalent", s.TotalWaterEquivalent, "mm"},
		{"total rain", s.TotalRain, "mm"},
		{"snow water equivalent", s.TotalSnowWaterEquivalent, "mm"},
		{"total snowfall", s.TotalSnowfall, "cm"},
		{"future water equivalent", s.FutureWaterEquivalent, "mm"},
		{"future rain", s.FutureRain, "mm"},
		{"future snowfall", s.FutureSnowfall, "cm"},
		{"max gust", s.MaxGust, "km/h"},
		{"min pressure", s.MinPressure, "hPa"},
		{"current snow depth", s.CurrentSnowDepth, "cm"},
		{"max snow depth", s.MaxSnowDepth, "cm"},
		{"season snowfall", s.SeasonSnowfall, "cm"},
	}
	for _, r := range rows {
		unit := r.unit
		if !r.value.Valid() {
			unit = ""
		}
		fmt.Fprintf(tw, "%s\t%s %s\n", r.label, r.value, unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if s.PowderAlert {
		fmt.Fprintln(w, "\npowder alert: heavy snowfall expected")
	}
	return nil
}

func printSeasonal(w io.Writer, format string, loc weather.Location, t weather.SeasonalTimeline) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"location":         loc,
			"seasonStart":      t.SeasonStart,
			"seasonSnowfallCm": t.SeasonSnowfall(),
			"daily":            t.Daily(),
		})
	case "csv":
		return weather.WriteSeasonalCSV(w, t)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	fmt.Fprintf(w, "%s  season since %s, snowfall %s cm\n\n",
		loc.DisplayName(), t.SeasonStart.Format("2006-01-02"), t.SeasonSnowfall())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSNOWFALL cm\tPRECIP mm\tMAX DEPTH cm")
	for _, d := range t.Daily() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Date, d.Snowfall, d.Precipitation, d.MaxSnowDepth)
	}
	return tw.Flush()
}
