package weather

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"
)

func TestWriteEnsembleCSV(t *testing.T) {
	axis := hourAxis(time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC), 2)
	e := EnsembleSeries{
		Timestamps: axis,
		Variables:  []string{VarTemperature, VarPrecipitation},
		Values: map[string]Series{
			VarTemperature:   {-1.234, math.NaN()},
			VarPrecipitation: {0, 2.5},
		},
	}

	var buf bytes.Buffer
	if err := WriteEnsembleCSV(&buf, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	want := [][]string{
		{"time", VarTemperature, VarPrecipitation},
		{"2025-01-14 00:00", "-1.23", "0"},
		{"2025-01-14 01:00", "", "2.5"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("row %d col %d: expected %q, got %q", i, j, want[i][j], rows[i][j])
			}
		}
	}
}

func TestWriteSeasonalCSV(t *testing.T) {
	ts := time.Date(2025, 1, 14, 5, 0, 0, 0, time.UTC)
	timeline := SeasonalTimeline{Records: []SeasonalRecord{
		{Time: ts, Snowfall: 1.5, Precipitation: 0.3, SnowDepth: 0.42},
		{Time: ts.Add(time.Hour), Snowfall: 0, Precipitation: 0, SnowDepth: Missing},
	}}

	var buf bytes.Buffer
	if err := WriteSeasonalCSV(&buf, timeline); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][3] != "snow_depth_cm" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][3] != "42" || rows[2][3] != "" {
		t.Fatalf("unexpected depth cells %q %q", rows[1][3], rows[2][3])
	}
}
