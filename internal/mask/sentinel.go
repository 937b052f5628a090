package mask

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

func (e *Engine) sentinel2(ctx context.Context, s *raster.Scene) (*raster.Scene, error) {
	if e.probs == nil {
		return nil, fmt.Errorf("scene %s: no cloud probability source configured", s.ID)
	}
	layer, err := e.probs.CloudProbability(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("cloud probability for %s: %w", s.ID, err)
	}
	if err := layer.Validate(); err != nil {
		return nil, fmt.Errorf("cloud probability for %s: %w", s.ID, err)
	}
	nir, err := band(s, raster.NIR)
	if err != nil {
		return nil, err
	}
	scl, _ := band(s, raster.SceneClass)

	prob := layer.Resample(s.Grid)
	// Pixels the probability layer does not cover cannot be shown clear.
	cloud := raster.Threshold(prob, func(p float64) bool { return p > e.cfg.CloudProbability })
	for i, p := range prob {
		if math.IsNaN(p) {
			cloud[i] = true
		}
	}

	dark := raster.Threshold(nir, func(v float64) bool { return v < e.cfg.DarkNIR })
	if scl != nil {
		for i, c := range scl {
			if c == e.cfg.WaterClass {
				dark[i] = false
			}
		}
	}

	sun := sunPosition(s, raster.PropSolarAzimuth, "", raster.PropSolarZenith)
	shadowAzimuth := math.Mod(sun.AzimuthDeg+180, 360)
	reach := int(math.Round(e.cfg.ProjectionMultiplier * e.cfg.CloudHeight / s.Grid.Scale))
	projected := raster.Project(cloud, s.Grid, shadowAzimuth, reach)

	cloudShadow := cloud.Or(projected.And(dark))
	cloudShadow = raster.Erode(cloudShadow, s.Grid, e.cfg.ErodePixels)
	cloudShadow = raster.Dilate(cloudShadow, s.Grid, int(math.Ceil(e.cfg.BufferMetres/s.Grid.Scale)))

	return withCloudMask(s, cloudShadow.Not()), nil
}
