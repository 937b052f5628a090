// Package forecast projects the water extent of a pond over the coming days
// with a rainfall-driven storage model seeded from its last classified
// state.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
	"github.com/couchcryptid/waterwatch-service/internal/timeseries"
)

// TerrainSource provides a digital elevation model in metres.
type TerrainSource interface {
	Elevation(ctx context.Context, bound orb.Bound) (raster.Layer, error)
}

// PrecipSource provides the precipitation forcing.
type PrecipSource interface {
	// ForecastPrecip returns the hourly accumulations of the run
	// initialised at run.
	ForecastPrecip(ctx context.Context, run time.Time, bound orb.Bound) ([]ForecastField, error)
	// ReanalysisPrecip returns the rate fields valid in [from, to).
	ReanalysisPrecip(ctx context.Context, from, to time.Time, bound orb.Bound) ([]RateField, error)
}

// Engine runs forecasts for individual ponds. It is safe for concurrent use.
type Engine struct {
	params  Params
	terrain TerrainSource
	precip  PrecipSource
	logger  *slog.Logger
}

// NewEngine validates p and returns an engine over the given sources.
func NewEngine(p Params, terrain TerrainSource, precip PrecipSource, logger *slog.Logger) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: p, terrain: terrain, precip: precip, logger: logger}, nil
}

// Params returns the engine's model constants.
func (e *Engine) Params() Params { return e.params }

// FeatureArea is the inventory area of f, or its geodesic area when unset.
func FeatureArea(f geo.Feature) float64 {
	if f.Area > 0 {
		return f.Area
	}
	return geo.Area(f.Geometry)
}

// Basin derives the storage constants of f from the terrain under it.
func (e *Engine) Basin(ctx context.Context, f geo.Feature) (Basin, error) {
	area := FeatureArea(f)
	if !(area > 0) {
		return Basin{}, domain.InvalidInput("forecast initialization", "feature %s has no area", f.ID)
	}
	dem, err := e.terrain.Elevation(ctx, f.Bound())
	if err != nil {
		return Basin{}, fmt.Errorf("elevation for %s: %w", f.ID, err)
	}
	st, err := raster.ReduceLayer(dem, f.Geometry)
	if err != nil || st.Valid == 0 {
		return Basin{}, domain.DataUnavailable("forecast initialization", "no elevation pixels inside feature %s", f.ID)
	}
	top := st.Min + e.params.ElevationBand
	n := raster.CountWhere(dem, f.Geometry, func(z float64) bool { return z >= st.Min && z <= top })
	return NewBasin(e.params, area, float64(n)*dem.Grid.PixelArea()), nil
}

// Run simulates f from the water fraction observed at start. The result
// holds the initial record followed by one record per forecast day.
func (e *Engine) Run(ctx context.Context, f geo.Feature, fraction float64, start time.Time) ([]State, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return nil, domain.InvalidInput("forecast", "initial water fraction %g outside [0,1]", fraction)
	}
	basin, err := e.Basin(ctx, f)
	if err != nil {
		return nil, err
	}

	at := f.Centroid()
	p := e.params
	rates, err := e.precip.ReanalysisPrecip(ctx, start.AddDate(0, 0, -p.AntecedentDays), start, f.Bound())
	if err != nil {
		return nil, fmt.Errorf("reanalysis precipitation for %s: %w", f.ID, err)
	}
	past, err := DailyReanalysis(rates, at, start, p.AntecedentDays)
	if err != nil {
		return nil, err
	}
	hourly, err := e.precip.ForecastPrecip(ctx, start, f.Bound())
	if err != nil {
		return nil, fmt.Errorf("forecast precipitation for %s: %w", f.ID, err)
	}
	forcing, err := DailyForecast(hourly, at, start, p.HorizonDays)
	if err != nil {
		return nil, err
	}

	initial := InitialState(p, basin, fraction, start, past[len(past)-1], AntecedentIndex(past))
	states := Simulate(p, basin, initial, forcing)
	e.logger.Debug("forecast simulated",
		"feature_id", f.ID,
		"so", basin.So,
		"initial_fraction", fraction,
		"days", len(forcing),
	)
	return states, nil
}

// Series converts simulated states to the fraction of the feature area
// under water.
func Series(states []State, featureArea float64) []domain.TimeSeriesPoint {
	out := make([]domain.TimeSeriesPoint, len(states))
	for i, s := range states {
		out[i] = timeseries.Point(s.Time, PctArea(s.Area, featureArea))
	}
	return out
}
