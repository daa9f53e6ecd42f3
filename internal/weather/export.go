package weather

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// ExportTimeLayout is the timestamp layout of exported tables; spreadsheet
// tools parse it as a local date-time.
const ExportTimeLayout = "2006-01-02 15:04"

// WriteEnsembleCSV writes the ensemble as one row per hour: the timestamp
// followed by one column per variable. Missing values are empty cells.
func WriteEnsembleCSV(w io.Writer, e EnsembleSeries) error {
	cw := csv.NewWriter(w)

	header := append([]string{"time"}, e.Variables...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, ts := range e.Timestamps {
		row[0] = ts.Format(ExportTimeLayout)
		for j, v := range e.Variables {
			row[j+1] = formatCell(e.Values[v], i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSeasonalCSV writes the seasonal timeline with snow depth in
// centimeters.
func WriteSeasonalCSV(w io.Writer, t SeasonalTimeline) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", VarSnowfall, VarPrecipitation, VarSnowDepth + "_cm"}); err != nil {
		return err
	}
	for _, r := range t.Records {
		depth := r.SnowDepth
		if depth.Valid() {
			depth *= metersToCm
		}
		err := cw.Write([]string{
			r.Time.Format(ExportTimeLayout),
			formatScalar(r.Snowfall),
			formatScalar(r.Precipitation),
			formatScalar(depth),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(s Series, i int) string {
	if i >= len(s) {
		return ""
	}
	return formatScalar(Scalar(s[i]))
}

func formatScalar(v Scalar) string {
	if !v.Valid() {
		return ""
	}
	return strconv.FormatFloat(math.Round(float64(v)*100)/100, 'f', -1, 64)
}
