package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// QueryScenes returns the raw archive scenes of q.Sensor over q.Bound.
func (c *Client) QueryScenes(ctx context.Context, q raster.Query) (raster.Stack, error) {
	var res sceneResult
	req := sceneQuery{BBox: toBBox(q.Bound), From: q.From.UnixMilli(), To: q.To.UnixMilli(), Sensor: string(q.Sensor)}
	if err := c.call(ctx, endpointScenes, req, &res); err != nil {
		return nil, err
	}
	st := make(raster.Stack, 0, len(res.Scenes))
	for _, w := range res.Scenes {
		s, err := w.scene()
		if err != nil {
			return nil, err
		}
		st = append(st, s)
	}
	c.logger.Debug("scenes fetched", "sensor", q.Sensor, "scenes", len(st))
	return st, nil
}

// CloudProbability returns the per-pixel cloud probability (0–100) that
// accompanies a Sentinel-2 scene. A scene without one is DataUnavailable.
func (c *Client) CloudProbability(ctx context.Context, sceneID string) (raster.Layer, error) {
	var res layerResult
	if err := c.call(ctx, endpointProbability, sceneRef{SceneID: sceneID}, &res); err != nil {
		return raster.Layer{}, err
	}
	return res.Layer.layer()
}

// TileURL returns the XYZ tile template of a scene rendered with vis.
func (c *Client) TileURL(ctx context.Context, sceneID string, vis domain.Visualization) (string, error) {
	var res tileResult
	if err := c.call(ctx, endpointTiles, tileQuery{SceneID: sceneID, Vis: vis}, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", domain.DataUnavailable(endpointTiles, "no tiles for scene %s", sceneID)
	}
	return res.URL, nil
}

// Elevation returns the terrain model over bound in metres.
func (c *Client) Elevation(ctx context.Context, bound orb.Bound) (raster.Layer, error) {
	var res layerResult
	if err := c.call(ctx, endpointElevation, regionQuery{BBox: toBBox(bound)}, &res); err != nil {
		return raster.Layer{}, err
	}
	return res.Layer.layer()
}

// ForecastPrecip returns the hourly precipitation accumulations of the
// forecast run initialised at run.
func (c *Client) ForecastPrecip(ctx context.Context, run time.Time, bound orb.Bound) ([]forecast.ForecastField, error) {
	var res forecastResult
	if err := c.call(ctx, endpointForecast, forecastQuery{BBox: toBBox(bound), Run: run.UnixMilli()}, &res); err != nil {
		return nil, err
	}
	fields, err := res.fields()
	if err != nil {
		return nil, fmt.Errorf("forecast run %s: %w", run.Format(time.RFC3339), err)
	}
	return fields, nil
}

// ReanalysisPrecip returns the precipitation rate fields valid in [from, to).
func (c *Client) ReanalysisPrecip(ctx context.Context, from, to time.Time, bound orb.Bound) ([]forecast.RateField, error) {
	var res reanalysisResult
	req := reanalysisQuery{BBox: toBBox(bound), From: from.UnixMilli(), To: to.UnixMilli()}
	if err := c.call(ctx, endpointReanalysis, req, &res); err != nil {
		return nil, err
	}
	return res.fields()
}
