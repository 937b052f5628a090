package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
	"github.com/couchcryptid/waterwatch-service/internal/timeseries"
)

// TileDescriptorForPoint returns true-color and water-index tiles over the
// pond containing lon/lat, from the scene of ts's UTC day acquired closest
// to ts.
func (s *Service) TileDescriptorForPoint(ctx context.Context, lon, lat float64, ts time.Time) (_ domain.TileDescriptor, err error) {
	ctx, done := s.begin(ctx, "tiles")
	defer func() { done(err) }()

	f, err := s.locate(lon, lat)
	if err != nil {
		return domain.TileDescriptor{}, err
	}
	if err := s.checkTime(ts); err != nil {
		return domain.TileDescriptor{}, err
	}
	day := ts.UTC().Truncate(24 * time.Hour)
	st, err := s.stacks.Harmonize(ctx, raster.Query{Bound: f.Bound(), From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		return domain.TileDescriptor{}, err
	}
	scene := closest(st, ts)
	if scene == nil {
		return domain.TileDescriptor{}, domain.DataUnavailable("tiles", "no scene of pond %s on %s", f.ID, day.Format(time.DateOnly))
	}

	trueColor, err := s.tiles.TileURL(ctx, scene.ID, TrueColor)
	if err != nil {
		return domain.TileDescriptor{}, fmt.Errorf("true color tiles for %s: %w", scene.ID, err)
	}
	water, err := s.tiles.TileURL(ctx, scene.ID, WaterIndex)
	if err != nil {
		return domain.TileDescriptor{}, fmt.Errorf("water index tiles for %s: %w", scene.ID, err)
	}

	props := make(map[string]any, len(scene.Properties)+3)
	for k, v := range scene.Properties {
		props[k] = v
	}
	props["scene_id"] = scene.ID
	props["sensor"] = string(scene.Sensor)
	props["time"] = scene.Time.UnixMilli()
	return domain.TileDescriptor{
		FeatureID:     f.ID,
		TrueColorURL:  trueColor,
		WaterIndexURL: water,
		Date:          scene.Time.UTC().Format(timeseries.DayFormat),
		Properties:    props,
	}, nil
}

func closest(st raster.Stack, ts time.Time) *raster.Scene {
	var (
		best *raster.Scene
		gap  time.Duration
	)
	for _, sc := range st {
		d := sc.Time.Sub(ts).Abs()
		if best == nil || d < gap {
			best, gap = sc, d
		}
	}
	return best
}
