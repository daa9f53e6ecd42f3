package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/meteo-ensemble/internal/log"
)

const (
	defaultModelTimeout  = 8 * time.Second
	defaultMaxConcurrent = 8
	defaultDays          = 3
	seasonalHorizonDays  = 7
)

// Service runs the ensemble pipeline: geocode, fan out one request per
// model, align, average, summarize, and build the seasonal timeline.
type Service struct {
	geocoder Geocoder
	client   ForecastClient
	models   []ModelSource

	cache    Cache
	recorder Recorder
	now      func() time.Time

	variables         []string
	seasonalVariables []string
	traceVariable     string
	modelTimeout      time.Duration
	maxConcurrent     int
	snowThreshold     float64
	defaultDays       int
	seasonalDays      int
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the read-through cache.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithRecorder sets the pipeline observer.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVariables sets the default hourly variable set of an analysis.
func WithVariables(vars []string) Option {
	return func(s *Service) {
		if len(vars) > 0 {
			s.variables = vars
		}
	}
}

// WithSeasonalVariables sets the hourly variables of the seasonal queries.
func WithSeasonalVariables(vars []string) Option {
	return func(s *Service) {
		if len(vars) > 0 {
			s.seasonalVariables = vars
		}
	}
}

// WithTraceVariable names the variable kept per model next to the ensemble.
func WithTraceVariable(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.traceVariable = name
		}
	}
}

// WithModelTimeout bounds every single model call.
func WithModelTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.modelTimeout = d
		}
	}
}

// WithMaxConcurrent limits the number of in-flight model calls.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

// WithSnowThreshold sets the hourly snowfall below which an hour is rain.
func WithSnowThreshold(cm float64) Option {
	return func(s *Service) {
		if cm > 0 {
			s.snowThreshold = cm
		}
	}
}

// WithDefaultDays sets the forecast horizon used when a request has none.
func WithDefaultDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

// WithSeasonalDays sets the forecast horizon of the seasonal timeline.
func WithSeasonalDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.seasonalDays = days
		}
	}
}

// NewService creates a new Service.
func NewService(client ForecastClient, geocoder Geocoder, models []ModelSource, opts ...Option) *Service {
	s := &Service{
		geocoder:          geocoder,
		client:            client,
		models:            models,
		recorder:          nopRecorder{},
		now:               time.Now,
		variables:         DefaultVariables,
		seasonalVariables: SeasonalVariables,
		traceVariable:     VarTemperature,
		modelTimeout:      defaultModelTimeout,
		maxConcurrent:     defaultMaxConcurrent,
		snowThreshold:     DefaultSnowThreshold,
		defaultDays:       defaultDays,
		seasonalDays:      seasonalHorizonDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models returns the configured model sources in request order.
func (s *Service) Models() []ModelSource {
	return s.models
}

// Resolve geocodes a place name. Any failure, including network errors,
// surfaces as ErrLocationNotFound.
func (s *Service) Resolve(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.recorder.Geocoded(false)
		return Location{}, fmt.Errorf("%w: empty query", ErrLocationNotFound)
	}
	if s.geocoder == nil {
		s.recorder.Geocoded(false)
		return Location{}, fmt.Errorf("%w: no geocoder configured", ErrLocationNotFound)
	}

	loc, err := s.geocoder.Search(ctx, name)
	if err != nil {
		s.recorder.Geocoded(false)
		log.Infow("geocoding failed", "query", name, "error", err)
		if errors.Is(err, ErrLocationNotFound) {
			return Location{}, err
		}
		return Location{}, fmt.Errorf("%w: %v", ErrLocationNotFound, err)
	}
	s.recorder.Geocoded(true)
	return loc, nil
}

// FetchModels fetches the request from every configured model concurrently.
// The result has one entry per model, in configuration order; a failed model
// carries an ErrModelUnavailable error instead of a series.
func (s *Service) FetchModels(ctx context.Context, req Request) []ModelResult {
	results := make([]ModelResult, len(s.models))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i, m := range s.models {
		g.Go(func() error {
			results[i] = s.fetchModel(gCtx, m, req)
			// Never fail the group: a model's absence only shrinks the ensemble.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) fetchModel(ctx context.Context, m ModelSource, req Request) ModelResult {
	ctx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	started := time.Now()
	series, err := s.client.Forecast(ctx, ForecastQuery{
		Location:  req.Location,
		Model:     m.ID,
		Variables: req.Variables,
		Days:      req.Days,
		PastDays:  req.PastDays,
	})
	if err == nil && series.Len() == 0 {
		err = errors.New("empty hourly axis")
	}
	s.recorder.ModelFetched(m.ID, err == nil, time.Since(started))
	if err != nil {
		log.Warnw("model fetch failed", "model", m.ID, "location", req.Location.Key(), "error", err)
		return ModelResult{Source: m, Err: fmt.Errorf("%w: %s: %v", ErrModelUnavailable, m.ID, err)}
	}
	series.Model = m.ID
	return ModelResult{Source: m, Series: series}
}

// BuildEnsemble aligns the successful results on the first successful
// model's time axis and averages them. It does no arithmetic when no model
// succeeded.
func BuildEnsemble(results []ModelResult, variables []string) (EnsembleSeries, []HourlySeries, error) {
	var ok []HourlySeries
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r.Series)
		}
	}
	if len(ok) == 0 {
		return EnsembleSeries{}, nil, ErrNoDataAvailable
	}

	_, aligned, err := Align(ok[0].Timestamps, ok, variables)
	if err != nil {
		return EnsembleSeries{}, nil, err
	}
	ensemble, err := Ensemble(aligned, variables)
	if err != nil {
		return EnsembleSeries{}, nil, err
	}
	return ensemble, aligned, nil
}

// Analyze runs the full pipeline for one request. The seasonal branch runs
// next to the model fan-out; its failure only leaves SeasonSnowfall missing.
func (s *Service) Analyze(ctx context.Context, req Request) (_ Analysis, err error) {
	req = s.normalize(req)

	key := s.cacheKey("analysis", req)
	if cached, ok := s.cacheGet("analysis", key); ok {
		if a, ok := cached.(Analysis); ok {
			return a, nil
		}
	}

	started := time.Now()
	defer func() {
		s.recorder.AnalysisFinished(err == nil, time.Since(started))
	}()

	var (
		results  []ModelResult
		seasonal SeasonalTimeline
		seasErr  error
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results = s.FetchModels(gCtx, req)
		return nil
	})
	g.Go(func() error {
		seasonal, seasErr = s.Seasonal(gCtx, req.Location, req.Now)
		return nil
	})
	_ = g.Wait()

	outcomes, succeeded := outcomesOf(results)
	s.recorder.EnsembleBuilt(succeeded, len(s.models))
	log.Infow("model fan-out finished",
		"location", req.Location.Key(),
		"succeeded", succeeded,
		"configured", len(s.models),
	)

	ensemble, aligned, err := BuildEnsemble(results, req.Variables)
	if err != nil {
		if ctx.Err() != nil {
			return Analysis{}, fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return Analysis{}, err
	}

	stats, err := ComputeStats(ensemble, StatsOptions{SnowThreshold: s.snowThreshold, Now: req.Now})
	if err != nil {
		log.Errorw("statistics failed", "location", req.Location.Key(), "error", err)
		return Analysis{}, fmt.Errorf("%w: %v", ErrNoDataAvailable, err)
	}
	if seasErr == nil {
		stats.SeasonSnowfall = seasonal.SeasonSnowfall()
	} else {
		log.Infow("seasonal branch unavailable", "location", req.Location.Key(), "error", seasErr)
	}

	traces := make(map[string]Series, len(aligned))
	for _, a := range aligned {
		if v, ok := a.Values[s.traceVariable]; ok {
			traces[a.Model] = v
		}
	}

	analysis := Analysis{
		ID:            uuid.NewString(),
		GeneratedAt:   req.Now,
		Location:      req.Location,
		Models:        outcomes,
		Ensemble:      ensemble,
		TraceVariable: s.traceVariable,
		Traces:        traces,
		Stats:         stats,
	}
	s.cacheSet(key, analysis)
	return analysis, nil
}

// Seasonal builds the season-to-date timeline: archive from the season start
// through yesterday plus the forecast from today on. Days follow the
// location's clock. When the zone is not known up front, the forecast is
// fetched first and its payload zone decides where yesterday ends.
func (s *Service) Seasonal(ctx context.Context, loc Location, now time.Time) (_ SeasonalTimeline, err error) {
	if now.IsZero() {
		now = s.now()
	}
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
	}()

	var (
		forecast HourlySeries
		fetched  bool
	)
	zone := s.zoneOf(loc)
	if zone == nil {
		forecast = s.seasonalForecast(ctx, loc)
		fetched = true
		if forecast.Len() > 0 {
			zone = forecast.Timestamps[0].Location()
			s.cacheSet(zoneKey(loc), zone)
		}
	}
	if zone != nil {
		now = now.In(zone)
	}

	key := s.cacheKey("seasonal", Request{Location: loc, Now: now, Days: s.seasonalDays, Variables: s.seasonalVariables})
	if cached, ok := s.cacheGet("seasonal", key); ok {
		if t, ok := cached.(SeasonalTimeline); ok {
			return t, nil
		}
	}

	var archive HourlySeries
	g, gCtx := errgroup.WithContext(ctx)
	if !fetched {
		g.Go(func() error {
			forecast = s.seasonalForecast(gCtx, loc)
			return nil
		})
	}
	if window, ok := SeasonalArchiveWindow(now); ok {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gCtx, s.modelTimeout)
			defer cancel()
			var err error
			archive, err = s.client.Archive(actx, ArchiveQuery{
				Location:  loc,
				Variables: s.seasonalVariables,
				Start:     window.Start,
				End:       window.End,
			})
			if err != nil {
				log.Warnw("seasonal archive failed", "location", loc.Key(), "error", err)
				archive = HourlySeries{}
			}
			return nil
		})
	}
	_ = g.Wait()

	timeline, err := MergeSeasonal(archive, forecast, SeasonStart(now), StartOfDay(now))
	if err != nil {
		return SeasonalTimeline{}, err
	}
	s.cacheSet(key, timeline)
	return timeline, nil
}

// seasonalForecast fetches the seasonal horizon from the default model. A
// failure yields an empty series.
func (s *Service) seasonalForecast(ctx context.Context, loc Location) HourlySeries {
	ctx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	forecast, err := s.client.Forecast(ctx, ForecastQuery{
		Location:  loc,
		Variables: s.seasonalVariables,
		Days:      s.seasonalDays,
	})
	if err != nil {
		log.Warnw("seasonal forecast failed", "location", loc.Key(), "error", err)
		return HourlySeries{}
	}
	return forecast
}

// zoneOf returns the location's time zone from its IANA name or from a zone
// learned on an earlier forecast, or nil when neither is known.
func (s *Service) zoneOf(loc Location) *time.Location {
	if loc.Timezone != "" {
		if zone, err := time.LoadLocation(loc.Timezone); err == nil {
			return zone
		}
		log.Debugw("unknown location time zone", "location", loc.Key(), "timezone", loc.Timezone)
	}
	if cached, ok := s.cacheGet("zone", zoneKey(loc)); ok {
		if zone, ok := cached.(*time.Location); ok {
			return zone
		}
	}
	return nil
}

func zoneKey(loc Location) string {
	return "zone|" + loc.Key()
}

func (s *Service) normalize(req Request) Request {
	if req.Now.IsZero() {
		req.Now = s.now()
	}
	if req.Days <= 0 {
		req.Days = s.defaultDays
	}
	if req.PastDays < 0 {
		req.PastDays = 0
	}
	if len(req.Variables) == 0 {
		req.Variables = s.variables
	}
	return req
}

func outcomesOf(results []ModelResult) ([]ModelOutcome, int) {
	outcomes := make([]ModelOutcome, 0, len(results))
	succeeded := 0
	for _, r := range results {
		o := ModelOutcome{ModelSource: r.Source, OK: r.OK()}
		if r.OK() {
			o.Hours = r.Series.Len()
			succeeded++
		} else {
			o.Error = r.Err.Error()
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, succeeded
}

// cacheKey buckets by location, calendar day and request shape so every
// cached stage expires on the same schedule.
func (s *Service) cacheKey(stage string, req Request) string {
	ids := make([]string, 0, len(s.models))
	for _, m := range s.models {
		ids = append(ids, m.ID)
	}
	return fmt.Sprintf("%s|%s|%s|d%d|p%d|%s|%s",
		stage,
		req.Location.Key(),
		req.Now.Format("2006-01-02"),
		req.Days,
		req.PastDays,
		strings.Join(req.Variables, ","),
		strings.Join(ids, ","),
	)
}

func (s *Service) cacheGet(stage, key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	s.recorder.CacheLookup(stage, ok)
	return v, ok
}

func (s *Service) cacheSet(key string, v any) {
	if s.cache != nil {
		s.cache.Set(key, v)
	}
}
