package raster

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
)

// Stats summarises a band over the pixels whose centres fall inside a
// geometry, sampled at the grid's native resolution.
type Stats struct {
	Total  int // pixels inside the geometry
	Valid  int // of those, valid under the mask and not NaN
	Sum    float64
	Mean   float64 // NaN when Valid == 0
	StdDev float64 // population; NaN when Valid == 0
	Min    float64
	Max    float64
}

// ValidFraction is Valid / Total, the spatial mean of the validity mask.
func (s Stats) ValidFraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Total)
}

// Reduce aggregates band b of grid g over geometry geom. Pixels where valid
// is false (nil means all valid) or the value is NaN are excluded from the
// moments but still count towards Total. A geometry that contains no pixel
// centre is a DataUnavailable error.
func Reduce(g Grid, b Band, valid Mask, geom orb.Geometry) (Stats, error) {
	st := Stats{Mean: math.NaN(), StdDev: math.NaN(), Min: math.Inf(1), Max: math.Inf(-1)}
	c0, r0, c1, r1, ok := g.Window(geom.Bound())
	if !ok {
		return st, domain.DataUnavailable("reduce region", "geometry does not overlap the raster")
	}
	var sumSq float64
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if !geo.Contains(geom, g.Center(col, row)) {
				continue
			}
			st.Total++
			i := g.Index(col, row)
			v := b[i]
			if (valid != nil && !valid[i]) || math.IsNaN(v) {
				continue
			}
			st.Valid++
			st.Sum += v
			sumSq += v * v
			st.Min = math.Min(st.Min, v)
			st.Max = math.Max(st.Max, v)
		}
	}
	if st.Total == 0 {
		return st, domain.DataUnavailable("reduce region", "no pixel centre inside geometry")
	}
	if st.Valid > 0 {
		n := float64(st.Valid)
		st.Mean = st.Sum / n
		st.StdDev = math.Sqrt(math.Max(sumSq/n-st.Mean*st.Mean, 0))
	}
	return st, nil
}

// ReduceScene aggregates a named band of a scene using the scene mask.
func ReduceScene(s *Scene, band string, geom orb.Geometry) (Stats, error) {
	b, err := s.Band(band)
	if err != nil {
		return Stats{}, domain.DataUnavailable("reduce region", "%v", err)
	}
	return Reduce(s.Grid, b, s.Mask, geom)
}

// ReduceLayer aggregates a layer with no mask beyond NaN.
func ReduceLayer(l Layer, geom orb.Geometry) (Stats, error) {
	return Reduce(l.Grid, l.Values, nil, geom)
}

// CountWhere counts pixels inside geom whose value satisfies pred.
func CountWhere(l Layer, geom orb.Geometry, pred func(float64) bool) int {
	c0, r0, c1, r1, ok := l.Grid.Window(geom.Bound())
	if !ok {
		return 0
	}
	n := 0
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if !geo.Contains(geom, l.Grid.Center(col, row)) {
				continue
			}
			v := l.Values[l.Grid.Index(col, row)]
			if !math.IsNaN(v) && pred(v) {
				n++
			}
		}
	}
	return n
}
