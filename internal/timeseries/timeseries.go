// Package timeseries reduces a scene stack to a chronological sequence of
// spatial means over one water body.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// DayFormat is the layout of the days-with-data view.
const DayFormat = "2006 January 02"

// Decimals is the output precision of every value.
const Decimals = 3

// Round rounds v to Decimals places.
func Round(v float64) float64 {
	const scale = 1000
	return math.Round(v*scale) / scale
}

// Point builds a rounded series entry. NaN becomes a null value.
func Point(t time.Time, v float64) domain.TimeSeriesPoint {
	p := domain.TimeSeriesPoint{Time: t.UTC()}
	if !math.IsNaN(v) {
		r := Round(v)
		p.Value = &r
	}
	return p
}

// moments accumulates pooled statistics for one timestamp.
type moments struct {
	t     time.Time
	n     int
	sum   float64
	sumSq float64
}

func (m *moments) add(st raster.Stats) {
	if st.Valid == 0 {
		return
	}
	n := float64(st.Valid)
	m.n += st.Valid
	m.sum += st.Sum
	m.sumSq += n * (st.StdDev*st.StdDev + st.Mean*st.Mean)
}

func (m moments) point() domain.TimeSeriesPoint {
	p := domain.TimeSeriesPoint{Time: m.t.UTC()}
	if m.n == 0 {
		return p
	}
	n := float64(m.n)
	mean := Round(m.sum / n)
	sd := Round(math.Sqrt(math.Max(m.sumSq/n-(m.sum/n)*(m.sum/n), 0)))
	p.Value, p.StdDev = &mean, &sd
	return p
}

// Extract returns the spatial mean of band over f for every scene whose
// footprint intersects f, ascending by time. Scenes sharing a timestamp are
// merged into one entry weighted by their valid pixel counts, and a scene
// with no valid pixel gives a null value. A feature no scene covers is a
// DataUnavailable error.
func Extract(st raster.Stack, f geo.Feature, band string) ([]domain.TimeSeriesPoint, error) {
	scenes := st.Intersecting(f.Bound())
	byTime := map[int64]*moments{}
	for _, s := range scenes {
		stats, err := raster.ReduceScene(s, band, f.Geometry)
		if errors.Is(err, domain.ErrDataUnavailable) {
			if _, present := s.Bands[band]; !present {
				return nil, fmt.Errorf("time series %s: %w", f.ID, err)
			}
			// The footprint touches the bound but no pixel centre falls
			// inside the polygon.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("time series %s: %w", f.ID, err)
		}
		key := s.Time.UnixMilli()
		m, ok := byTime[key]
		if !ok {
			m = &moments{t: time.UnixMilli(key)}
			byTime[key] = m
		}
		m.add(stats)
	}
	if len(byTime) == 0 {
		return nil, domain.DataUnavailable("time series", "no scene covers feature %s", f.ID)
	}

	keys := make([]int64, 0, len(byTime))
	for k := range byTime {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]domain.TimeSeriesPoint, len(keys))
	for i, k := range keys {
		out[i] = byTime[k].point()
	}
	return out, nil
}

// DaysWithData keeps the entries with a positive value, labelled by day.
func DaysWithData(points []domain.TimeSeriesPoint) []domain.DayValue {
	var out []domain.DayValue
	for _, p := range points {
		if p.Value == nil || *p.Value <= 0 {
			continue
		}
		out = append(out, domain.DayValue{Date: p.Time.UTC().Format(DayFormat), Value: *p.Value})
	}
	return out
}
