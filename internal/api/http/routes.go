package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/meteo-ensemble/internal/common"
	"github.com/i474232898/meteo-ensemble/internal/log"
	"github.com/i474232898/meteo-ensemble/internal/weather"
)

var validate = validator.New()

var requestTimeout = 25 * time.Second

type handlers struct {
	service *weather.Service
	maxDays int
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, maxDays int) {
	h := &handlers{service: service, maxDays: maxDays}

	v1 := app.Group("/api/v1")
	v1.Get("/models", h.models)
	v1.Get("/geocode", h.geocode)
	v1.Get("/analysis", h.analysis)
	v1.Get("/analysis.csv", h.analysisCSV)
	v1.Get("/seasonal", h.seasonal)
	v1.Get("/seasonal.csv", h.seasonalCSV)
}

func (h *handlers) models(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"models": h.service.Models()})
}

func (h *handlers) geocode(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if err := validate.Var(name, "required,max=200"); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "name query parameter is required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	loc, err := h.service.Resolve(ctx, name)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(loc)
}

func (h *handlers) analysis(c *fiber.Ctx) error {
	a, err := h.runAnalysis(c)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (h *handlers) analysisCSV(c *fiber.Ctx) error {
	a, err := h.runAnalysis(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := weather.WriteEnsembleCSV(&buf, a.Ensemble); err != nil {
		log.Errorw("csv export failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to export analysis")
	}
	return sendCSV(c, "ensemble-"+common.Slug(a.Location.Name, "location")+".csv", buf.Bytes())
}

func (h *handlers) seasonal(c *fiber.Ctx) error {
	loc, timeline, err := h.runSeasonal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"location":         loc,
		"seasonStart":      timeline.SeasonStart,
		"seasonSnowfallCm": timeline.SeasonSnowfall(),
		"daily":            timeline.Daily(),
		"records":          timeline.Records,
	})
}

func (h *handlers) seasonalCSV(c *fiber.Ctx) error {
	loc, timeline, err := h.runSeasonal(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := weather.WriteSeasonalCSV(&buf, timeline); err != nil {
		log.Errorw("csv export failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to export seasonal timeline")
	}
	return sendCSV(c, "season-"+common.Slug(loc.Name, "location")+".csv", buf.Bytes())
}

func (h *handlers) runAnalysis(c *fiber.Ctx) (weather.Analysis, error) {
	var q analysisQuery
	if err := q.bind(c, h.maxDays); err != nil {
		return weather.Analysis{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	loc, err := h.locate(ctx, q.placeQuery)
	if err != nil {
		return weather.Analysis{}, err
	}
	a, err := h.service.Analyze(ctx, weather.Request{
		Location: loc,
		Days:     q.Days,
		PastDays: q.PastDays,
	})
	if err != nil {
		return weather.Analysis{}, mapError(err)
	}
	return a, nil
}

func (h *handlers) runSeasonal(c *fiber.Ctx) (weather.Location, weather.SeasonalTimeline, error) {
	var q placeQuery
	if err := q.bind(c); err != nil {
		return weather.Location{}, weather.SeasonalTimeline{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	loc, err := h.locate(ctx, q)
	if err != nil {
		return weather.Location{}, weather.SeasonalTimeline{}, err
	}
	timeline, err := h.service.Seasonal(ctx, loc, time.Time{})
	if err != nil {
		return weather.Location{}, weather.SeasonalTimeline{}, mapError(err)
	}
	return loc, timeline, nil
}

func (h *handlers) locate(ctx context.Context, q placeQuery) (weather.Location, error) {
	if q.Name == "" {
		return weather.LocationFromCoordinates(*q.Lat, *q.Lon), nil
	}
	loc, err := h.service.Resolve(ctx, q.Name)
	if err != nil {
		return weather.Location{}, mapError(err)
	}
	return loc, nil
}

// mapError turns pipeline errors into plain-language HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "weather providers timed out")
	case errors.Is(err, weather.ErrLocationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "location not found")
	case errors.Is(err, weather.ErrNoDataAvailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "no data from any weather model for this location")
	case errors.Is(err, weather.ErrSeasonalUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "seasonal data unavailable for this location")
	default:
		log.Errorw("unexpected pipeline error", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute analysis")
	}
}

// placeQuery identifies a location either by name or by coordinates.
type placeQuery struct {
	Name string   `validate:"required_without_all=Lat Lon,max=200"`
	Lat  *float64 `validate:"required_without=Name,omitempty,gte=-90,lte=90"`
	Lon  *float64 `validate:"required_without=Name,omitempty,gte=-180,lte=180"`
}

func (p *placeQuery) bind(c *fiber.Ctx) error {
	p.Name = strings.TrimSpace(c.Query("name"))

	var err error
	if p.Lat, err = parseOptionalFloat(c.Query("lat"), "lat"); err != nil {
		return err
	}
	if p.Lon, err = parseOptionalFloat(c.Query("lon"), "lon"); err != nil {
		return err
	}

	if p.Name != "" && (p.Lat != nil || p.Lon != nil) {
		return errors.New("use either name or lat/lon, not both")
	}
	if p.Name == "" && (p.Lat == nil || p.Lon == nil) {
		return errors.New("name or both lat and lon query parameters are required")
	}
	return validate.Struct(p)
}

// analysisQuery holds query parameters for the analysis endpoints.
type analysisQuery struct {
	placeQuery
	Days     int `validate:"gte=0"`
	PastDays int `validate:"gte=0,lte=92"`
}

func (a *analysisQuery) bind(c *fiber.Ctx, maxDays int) error {
	if err := a.placeQuery.bind(c); err != nil {
		return err
	}

	var err error
	if a.Days, err = parseOptionalInt(c.Query("days"), "days"); err != nil {
		return err
	}
	if a.PastDays, err = parseOptionalInt(c.Query("past_days"), "past_days"); err != nil {
		return err
	}
	if c.Query("days") != "" {
		if err := validate.Var(a.Days, fmt.Sprintf("min=1,max=%d", maxDays)); err != nil {
			return fmt.Errorf("days must be between 1 and %d", maxDays)
		}
	}
	return validate.Struct(a)
}

func parseOptionalFloat(s, name string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, s)
	}
	return &v, nil
}

func parseOptionalInt(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func sendCSV(c *fiber.Ctx, filename string, body []byte) error {
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(body)
}
