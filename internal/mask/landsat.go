package mask

import (
	"math"

	"github.com/couchcryptid/waterwatch-service/internal/index"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// rescale maps v linearly from [lo,hi] to [0,1] and clamps. lo may exceed hi.
func rescale(v, lo, hi float64) float64 {
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// CloudScore is the simple per-pixel Landsat cloud likelihood on [0,100].
// Each test can only lower the score. tir is the brightness temperature in
// Kelvin, or NaN when the scene carries no thermal band.
func CloudScore(blue, green, red, nir, swir1, swir2, tir float64) float64 {
	score := 1.0
	score = math.Min(score, rescale(blue, 0.1, 0.3))
	score = math.Min(score, rescale(red+green+blue, 0.2, 0.8))
	score = math.Min(score, rescale(nir+swir1+swir2, 0.3, 0.8))
	if !math.IsNaN(tir) {
		score = math.Min(score, rescale(tir, 300, 290))
	}
	if ndsi := index.NormalizedDifference(green, swir1); !math.IsNaN(ndsi) {
		score = math.Min(score, rescale(ndsi, 0.8, 0.6))
	}
	return score * 100
}

func (e *Engine) landsat(s *raster.Scene) (*raster.Scene, error) {
	names := []string{raster.Blue, raster.Green, raster.Red, raster.NIR, raster.SWIR1, raster.SWIR2}
	bands := make([]raster.Band, len(names))
	for i, n := range names {
		b, err := band(s, n)
		if err != nil {
			return nil, err
		}
		bands[i] = b
	}
	tir, _ := band(s, raster.Thermal)

	valid := make(raster.Mask, s.Grid.Len())
	for i := range valid {
		t := math.NaN()
		if tir != nil {
			t = tir[i]
		}
		score := CloudScore(bands[0][i], bands[1][i], bands[2][i], bands[3][i], bands[4][i], bands[5][i], t)
		valid[i] = !math.IsNaN(score) && score <= e.cfg.CloudScoreMax
	}

	out := withCloudMask(s, valid)
	sun := sunPosition(s, raster.PropSunAzimuth, raster.PropSunElevation, "")
	out.Properties[raster.PropZenith] = sun.ZenithDeg()
	return out, nil
}
