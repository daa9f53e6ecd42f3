package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/meteo-ensemble/internal/weather"
)

var _ weather.Recorder = (*Manager)(nil)

func scrape(t *testing.T, m *Manager) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestManagerRecordsPipeline(t *testing.T) {
	m := NewManager(WithNamespace("test"))

	m.ModelFetched("icon_seamless", true, 300*time.Millisecond)
	m.ModelFetched("gfs_seamless", false, 2*time.Second)
	m.ModelFetched("gfs_seamless", false, time.Second)
	m.EnsembleBuilt(3, 4)
	m.EnsembleBuilt(4, 4)
	m.Geocoded(true)
	m.CacheLookup("analysis", true)
	m.CacheLookup("analysis", false)
	m.AnalysisFinished(true, 1500*time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`test_model_fetches_total{model="gfs_seamless",outcome="failure"} 2`,
		`test_model_fetches_total{model="icon_seamless",outcome="success"} 1`,
		`test_model_fetch_duration_seconds_count{model="gfs_seamless"} 2`,
		`test_ensemble_degraded_total 1`,
		`test_ensemble_members_count 2`,
		`test_geocoder_lookups_total{outcome="success"} 1`,
		`test_cache_lookups_total{result="hit",stage="analysis"} 1`,
		`test_cache_lookups_total{result="miss",stage="analysis"} 1`,
		`test_analysis_duration_seconds_count{outcome="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestManagerDefaultNamespace(t *testing.T) {
	m := NewManager()
	m.Geocoded(false)

	if body := scrape(t, m); !strings.Contains(body, `meteo_geocoder_lookups_total{outcome="failure"} 1`) {
		t.Fatalf("metric not exposed:\n%s", body)
	}
}

func TestManagerRuntimeCollectors(t *testing.T) {
	m := NewManager(WithRuntimeCollectors())
	if body := scrape(t, m); !strings.Contains(body, "go_goroutines") {
		t.Fatalf("runtime collectors not registered")
	}
}
