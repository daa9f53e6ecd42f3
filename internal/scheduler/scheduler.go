package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/meteo-ensemble/internal/log"
	"github.com/i474232898/meteo-ensemble/internal/weather"
)

// Analyzer is the slice of weather.Service the warm-up job needs.
type Analyzer interface {
	Resolve(ctx context.Context, name string) (weather.Location, error)
	Analyze(ctx context.Context, req weather.Request) (weather.Analysis, error)
}

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
}

// Scheduler periodically purges the cache and re-runs the analysis for the
// configured places so their first request is served warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	analyzer  Analyzer
	purger    Purger
	places    []string
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. purger may be nil when caching is off.
func New(places []string, interval time.Duration, analyzer Analyzer, purger Purger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		analyzer:  analyzer,
		purger:    purger,
		places:    places,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.places) == 0 && s.purger == nil {
		log.Info("scheduler: nothing to warm or purge; not scheduling")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce purges the cache and warms every configured place.
func (s *Scheduler) RunOnce() {
	if s.purger != nil {
		if n := s.purger.Purge(); n > 0 {
			log.Debugf("scheduler: purged %d expired cache entries", n)
		}
	}
	if len(s.places) == 0 {
		return
	}

	log.Infow("scheduler: warming analyses", "places", len(s.places))

	var wg sync.WaitGroup
	for _, place := range s.places {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			loc, err := s.analyzer.Resolve(ctx, place)
			if err != nil {
				log.Warnw("scheduler: cannot resolve place", "place", place, "error", err)
				return
			}
			if _, err := s.analyzer.Analyze(ctx, weather.Request{Location: loc}); err != nil {
				log.Warnw("scheduler: warm-up failed", "place", place, "error", err)
			}
		}()
	}
	wg.Wait()
	log.Info("scheduler: completed warm-up job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
