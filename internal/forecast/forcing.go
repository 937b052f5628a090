package forecast

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// secondsPerDay converts a precipitation rate in kg m⁻² s⁻¹ (mm/s) to mm/day.
const secondsPerDay = 86400

// ForecastField is the precipitation accumulated over one forecast hour of
// a model run, in mm.
type ForecastField struct {
	Hour  int // hours after the run time, from 1
	Layer raster.Layer
}

// RateField is a reanalysis precipitation rate in kg m⁻² s⁻¹ valid at Time.
type RateField struct {
	Time  time.Time
	Layer raster.Layer
}

// sample reads a layer at the pond centroid.
func sample(l raster.Layer, at orb.Point) (float64, bool) {
	v, ok := l.At(at)
	return v, ok && !math.IsNaN(v)
}

// AntecedentWeights returns the recency weights 1/(k−i) for days i = 0..k−1,
// oldest first.
func AntecedentWeights(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k-i)
	}
	return w
}

// AntecedentIndex is the recency-weighted sum of daily precipitation,
// oldest day first.
func AntecedentIndex(daily []float64) float64 {
	return floats.Dot(daily, AntecedentWeights(len(daily)))
}

// DailyReanalysis reduces rate fields to daily totals in mm for the days
// [start−days, start), oldest first. Each daily total is the mean rate of
// that day's fields times the length of a day. A day with no usable field
// is a DataUnavailable error.
func DailyReanalysis(fields []RateField, at orb.Point, start time.Time, days int) ([]float64, error) {
	sums := make([]float64, days)
	counts := make([]int, days)
	from := start.AddDate(0, 0, -days)
	for _, f := range fields {
		if f.Time.Before(from) || !f.Time.Before(start) {
			continue
		}
		v, ok := sample(f.Layer, at)
		if !ok {
			continue
		}
		d := int(f.Time.Sub(from) / (24 * time.Hour))
		sums[d] += v
		counts[d]++
	}
	out := make([]float64, days)
	for d := range out {
		if counts[d] == 0 {
			return nil, domain.DataUnavailable("reanalysis precipitation", "no data for %s", from.AddDate(0, 0, d).Format(time.DateOnly))
		}
		out[d] = sums[d] / float64(counts[d]) * secondsPerDay
	}
	return out, nil
}

// DailyForecast sums forecast hours into days 0..horizon, day i holding
// hours 24i+1 through 24(i+1). A day with no usable field is a
// DataUnavailable error.
func DailyForecast(fields []ForecastField, at orb.Point, run time.Time, horizon int) ([]DayForcing, error) {
	out := make([]DayForcing, horizon+1)
	seen := make([]bool, horizon+1)
	for i := range out {
		out[i].Time = run.AddDate(0, 0, i)
	}
	for _, f := range fields {
		if f.Hour < 1 {
			continue
		}
		d := (f.Hour - 1) / 24
		if d > horizon {
			continue
		}
		v, ok := sample(f.Layer, at)
		if !ok {
			continue
		}
		out[d].Precip += v
		seen[d] = true
	}
	for d, ok := range seen {
		if !ok {
			return nil, domain.DataUnavailable("forecast precipitation", "no data for day %d of run %s", d, run.Format(time.RFC3339))
		}
	}
	return out, nil
}
