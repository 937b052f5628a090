package mask

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// temporalStats holds per-pixel mean and sample standard deviation of each
// shadow band across a stack, on a shared reference grid.
type temporalStats struct {
	grid raster.Grid
	mean [][]float64 // [band][pixel]
	std  [][]float64
}

// referenceGrid covers the union of every footprint at the coarsest pixel
// size in the stack.
func referenceGrid(st raster.Stack) raster.Grid {
	coarsest := st[0].Grid
	bound := st[0].Footprint()
	for _, s := range st[1:] {
		bound = bound.Union(s.Footprint())
		if s.Grid.Scale > coarsest.Scale {
			coarsest = s.Grid
		}
	}
	return raster.GridFor(bound, coarsest.PixelWidth, coarsest.PixelHeight, coarsest.Scale)
}

func (e *Engine) computeTemporalStats(st raster.Stack) temporalStats {
	ref := referenceGrid(st)
	nb := len(e.cfg.ShadowBands)
	samples := make([][][]float64, nb)
	for b := range samples {
		samples[b] = make([][]float64, ref.Len())
	}

	for _, s := range st {
		bands := make([]raster.Band, nb)
		missing := false
		for b, name := range e.cfg.ShadowBands {
			values, err := band(s, name)
			if err != nil {
				missing = true
				break
			}
			bands[b] = values
		}
		if missing {
			e.logger.Warn("scene skipped in temporal statistics", "scene_id", s.ID, "reason", "missing shadow band")
			continue
		}
		for row := 0; row < ref.Height; row++ {
			for col := 0; col < ref.Width; col++ {
				sc, sr, ok := s.Grid.Locate(ref.Center(col, row))
				if !ok {
					continue
				}
				i := s.Grid.Index(sc, sr)
				if s.CloudMask != nil && !s.CloudMask[i] {
					continue
				}
				ri := ref.Index(col, row)
				for b := range bands {
					if v := bands[b][i]; !math.IsNaN(v) {
						samples[b][ri] = append(samples[b][ri], v)
					}
				}
			}
		}
	}

	ts := temporalStats{grid: ref, mean: make([][]float64, nb), std: make([][]float64, nb)}
	for b := range samples {
		ts.mean[b] = make([]float64, ref.Len())
		ts.std[b] = make([]float64, ref.Len())
		for i, xs := range samples[b] {
			if len(xs) < 2 {
				ts.mean[b][i], ts.std[b][i] = math.NaN(), math.NaN()
				continue
			}
			ts.mean[b][i], ts.std[b][i] = stat.MeanStdDev(xs, nil)
		}
	}
	return ts
}

// at returns the reference pixel index for p.
func (ts temporalStats) at(p orb.Point) (int, bool) {
	col, row, ok := ts.grid.Locate(p)
	if !ok {
		return 0, false
	}
	return ts.grid.Index(col, row), true
}

// darkOutliers flags pixels of s that are anomalously dark against the
// stack statistics, then dilates the flags.
func (e *Engine) darkOutliers(s *raster.Scene, ts temporalStats) raster.Mask {
	dark := make(raster.Mask, s.Grid.Len())
	bands := make([]raster.Band, len(e.cfg.ShadowBands))
	for b, name := range e.cfg.ShadowBands {
		values, err := band(s, name)
		if err != nil {
			return dark
		}
		bands[b] = values
	}
	for i := range dark {
		ri, ok := ts.at(s.Grid.Center(s.Grid.ColRow(i)))
		if !ok {
			continue
		}
		low, sum := 0, 0.0
		for b := range bands {
			v := bands[b][i]
			sum += v
			if sd := ts.std[b][ri]; sd > 0 && (v-ts.mean[b][ri])/sd < e.cfg.ZScore {
				low++
			}
		}
		dark[i] = low >= e.cfg.MinDarkBands && sum < e.cfg.DarkSum
	}
	return raster.Dilate(dark, s.Grid, e.cfg.DilatePixels)
}

// TemporalDarkOutliers narrows every scene's mask by NOT dark, where dark
// pixels are those whose shadow bands fall well below their temporal mean.
// Statistics are computed from cloud-valid pixels only, so running the pass
// again over its own output gives the same masks.
func (e *Engine) TemporalDarkOutliers(st raster.Stack) raster.Stack {
	if len(st) == 0 {
		return st
	}
	ts := e.computeTemporalStats(st)
	return st.Map(func(s *raster.Scene) *raster.Scene {
		dark := e.darkOutliers(s, ts)
		e.logger.Debug("temporal dark outliers", "scene_id", s.ID, "dark_pixels", dark.Count())
		return s.Restrict(dark.Not())
	})
}
