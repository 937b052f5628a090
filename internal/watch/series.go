package watch

import (
	"context"
	"time"

	"github.com/couchcryptid/waterwatch-service/internal/classify"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/timeseries"
)

func seriesFor(f geo.Feature, values []domain.TimeSeriesPoint) domain.FeatureSeries {
	return domain.FeatureSeries{
		FeatureID:   f.ID,
		Name:        f.DisplayName(),
		Coordinates: f.Geometry,
		Values:      values,
	}
}

// TimeSeriesForPoint returns the historical water fraction of the pond
// containing lon/lat since the configured history start.
func (s *Service) TimeSeriesForPoint(ctx context.Context, lon, lat float64) (_ domain.FeatureSeries, err error) {
	ctx, done := s.begin(ctx, "time_series")
	defer func() { done(err) }()

	f, err := s.locate(lon, lat)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	st, err := s.classifiedStack(ctx, f.Bound(), s.cfg.HistoryStart, s.clock.Now().UTC())
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	points, err := timeseries.Extract(st, f, classify.BandWater)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	out := seriesFor(f, points)
	out.DaysWithData = timeseries.DaysWithData(points)
	return out, nil
}

// lastObserved returns the most recent non-null entry of points.
func lastObserved(points []domain.TimeSeriesPoint) (domain.TimeSeriesPoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Value != nil {
			return points[i], true
		}
	}
	return domain.TimeSeriesPoint{}, false
}

// ForecastForPoint forecasts the water fraction of the pond containing
// lon/lat, seeded from its last observed fraction within the lookback
// window.
func (s *Service) ForecastForPoint(ctx context.Context, lon, lat float64) (_ domain.FeatureSeries, err error) {
	ctx, done := s.begin(ctx, "forecast")
	defer func() { done(err) }()

	f, err := s.locate(lon, lat)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	return s.forecast(ctx, f)
}

// ForecastForFeature forecasts the pond with the given inventory id.
func (s *Service) ForecastForFeature(ctx context.Context, id string) (_ domain.FeatureSeries, err error) {
	ctx, done := s.begin(ctx, "forecast")
	defer func() { done(err) }()

	f, ok := s.inventory.Get(id)
	if !ok {
		return domain.FeatureSeries{}, domain.InvalidInput("forecast", "no pond with id %q", id)
	}
	return s.forecast(ctx, f)
}

func (s *Service) forecast(ctx context.Context, f geo.Feature) (domain.FeatureSeries, error) {
	now := s.clock.Now().UTC()
	st, err := s.classifiedStack(ctx, f.Bound(), now.Add(-s.cfg.ClassifyLookback), now)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	points, err := timeseries.Extract(st, f, classify.BandWater)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	last, ok := lastObserved(points)
	if !ok {
		return domain.FeatureSeries{}, domain.DataUnavailable("forecast", "no valid observation of pond %s in the last %s", f.ID, s.cfg.ClassifyLookback)
	}

	day := last.Time.UTC().Truncate(24 * time.Hour)
	states, err := s.forecaster.Run(ctx, f, *last.Value, day)
	if err != nil {
		return domain.FeatureSeries{}, err
	}
	s.logger.Info("pond forecast",
		"feature_id", f.ID,
		"initial_fraction", *last.Value,
		"observed", last.Time,
		"days", len(states)-1,
	)
	return seriesFor(f, forecast.Series(states, forecast.FeatureArea(f))), nil
}
