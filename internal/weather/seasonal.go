package weather

import (
	"sort"
	"time"
)

// SeasonStart returns November 1st opening the winter season that now falls
// in: this year's from September on, otherwise last year's.
func SeasonStart(now time.Time) time.Time {
	year := now.Year()
	if now.Month() <= time.August {
		year--
	}
	return time.Date(year, time.November, 1, 0, 0, 0, 0, now.Location())
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ArchiveWindow is the date range the archive is queried for.
type ArchiveWindow struct {
	Start time.Time
	End   time.Time
}

// SeasonalArchiveWindow returns season start through yesterday. ok is false
// when the season has not started yet and there is nothing to archive.
func SeasonalArchiveWindow(now time.Time) (ArchiveWindow, bool) {
	start := SeasonStart(now)
	end := StartOfDay(now).AddDate(0, 0, -1)
	if start.After(end) {
		return ArchiveWindow{}, false
	}
	return ArchiveWindow{Start: start, End: end}, true
}

// MergeSeasonal joins an archive range and a forecast range into one
// timeline. Forecast records before today are dropped, the forecast wins on
// duplicate timestamps, records before seasonStart are dropped and the
// result is sorted ascending. A zero-length series counts as not returned.
func MergeSeasonal(archive, forecast HourlySeries, seasonStart, today time.Time) (SeasonalTimeline, error) {
	if archive.Len() == 0 && forecast.Len() == 0 {
		return SeasonalTimeline{}, ErrSeasonalUnavailable
	}

	byInstant := make(map[int64]SeasonalRecord)
	for _, r := range seasonalRecords(archive) {
		byInstant[r.Time.Unix()] = r
	}
	for _, r := range seasonalRecords(forecast) {
		if r.Time.Before(today) {
			continue
		}
		byInstant[r.Time.Unix()] = r
	}

	records := make([]SeasonalRecord, 0, len(byInstant))
	for _, r := range byInstant {
		if r.Time.Before(seasonStart) {
			continue
		}
		records = append(records, r)
	}
	if len(records) == 0 {
		return SeasonalTimeline{}, ErrSeasonalUnavailable
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})

	return SeasonalTimeline{SeasonStart: seasonStart, Records: records}, nil
}

func seasonalRecords(h HourlySeries) []SeasonalRecord {
	n := h.Len()
	for _, v := range SeasonalVariables {
		if s, ok := h.Values[v]; ok && len(s) < n {
			n = len(s)
		}
	}
	at := func(name string, i int) Scalar {
		s, ok := h.Values[name]
		if !ok {
			return Scalar(Fill(name))
		}
		return Scalar(s[i])
	}

	out := make([]SeasonalRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SeasonalRecord{
			Time:          h.Timestamps[i],
			Snowfall:      at(VarSnowfall, i),
			Precipitation: at(VarPrecipitation, i),
			SnowDepth:     at(VarSnowDepth, i),
		})
	}
	return out
}

// SeasonSnowfall totals the snowfall of the timeline.
func (t SeasonalTimeline) SeasonSnowfall() Scalar {
	var sum float64
	var found bool
	for _, r := range t.Records {
		if r.Snowfall.Valid() {
			sum += float64(r.Snowfall)
			found = true
		}
	}
	if !found {
		return Missing
	}
	return Scalar(sum)
}

// Daily rolls the timeline into calendar days: snowfall and precipitation
// summed, snow depth maximum converted to centimeters.
func (t SeasonalTimeline) Daily() []DailyRecord {
	var days []DailyRecord
	index := make(map[string]int)
	for _, r := range t.Records {
		key := r.Time.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			days = append(days, DailyRecord{
				Date:          key,
				Snowfall:      Missing,
				Precipitation: Missing,
				MaxSnowDepth:  Missing,
			})
			i = len(days) - 1
			index[key] = i
		}
		d := &days[i]
		d.Snowfall = addValid(d.Snowfall, r.Snowfall)
		d.Precipitation = addValid(d.Precipitation, r.Precipitation)
		if r.SnowDepth.Valid() {
			cm := r.SnowDepth * metersToCm
			if !d.MaxSnowDepth.Valid() || cm > d.MaxSnowDepth {
				d.MaxSnowDepth = cm
			}
		}
	}
	return days
}

func addValid(acc, v Scalar) Scalar {
	if !v.Valid() {
		return acc
	}
	if !acc.Valid() {
		return v
	}
	return acc + v
}
