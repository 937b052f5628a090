package timeseries

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

var (
	t0   = time.Date(2021, 7, 3, 11, 0, 0, 0, time.UTC)
	grid = raster.Grid{Width: 4, Height: 1, OriginLon: -14, OriginLat: 15, PixelWidth: 0.001, PixelHeight: 0.001, Scale: 100}
	pond = geo.Feature{ID: "p1", Geometry: grid.Bound().ToPolygon()}
)

func waterScene(id string, at time.Time, values raster.Band, valid raster.Mask) *raster.Scene {
	return &raster.Scene{ID: id, Time: at, Grid: grid, Bands: map[string]raster.Band{"water": values}, Mask: valid}
}

func values(points []domain.TimeSeriesPoint) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func TestExtract_AscendingAndRounded(t *testing.T) {
	st := raster.Stack{
		waterScene("c", t0.AddDate(0, 0, 10), raster.Band{1, 1, 0, 0}, nil),
		waterScene("a", t0, raster.Band{1, 0, 0, 0}, nil),
		waterScene("b", t0.AddDate(0, 0, 5), raster.Band{1, 1, 1, 0}, raster.Mask{true, true, true, false}),
	}

	points, err := Extract(st, pond, "water")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, t0, points[0].Time)
	assert.InDelta(t, 0.25, *points[0].Value, 0)
	assert.InDelta(t, 1.0, *points[1].Value, 0)
	assert.InDelta(t, 0.5, *points[2].Value, 0)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Time.After(points[i-1].Time))
	}
}

func TestExtract_RoundsToThreeDecimals(t *testing.T) {
	st := raster.Stack{waterScene("a", t0, raster.Band{1, 0, 0, 0}, raster.Mask{true, true, true, false})}

	points, err := Extract(st, pond, "water")
	require.NoError(t, err)
	assert.InDelta(t, 0.333, *points[0].Value, 0)
}

func TestExtract_MergesDuplicateTimestamps(t *testing.T) {
	st := raster.Stack{
		// 3 valid pixels, mean 1.
		waterScene("l8", t0, raster.Band{1, 1, 1, 0}, raster.Mask{true, true, true, false}),
		// 1 valid pixel, mean 0.
		waterScene("s2", t0, raster.Band{0, 1, 1, 1}, raster.Mask{true, false, false, false}),
	}

	points, err := Extract(st, pond, "water")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.75, *points[0].Value, 0)
	require.NotNil(t, points[0].StdDev)
	assert.InDelta(t, Round(math.Sqrt(0.75*0.25)), *points[0].StdDev, 0)
}

func TestExtract_FullyMaskedSceneIsNull(t *testing.T) {
	st := raster.Stack{
		waterScene("a", t0, raster.Band{1, 1, 1, 1}, raster.NewMask(4, false)),
		waterScene("b", t0.AddDate(0, 0, 1), raster.Band{1, 1, 1, 1}, nil),
	}

	points, err := Extract(st, pond, "water")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Nil(t, points[0].Value)
	assert.NotNil(t, points[1].Value)
}

func TestExtract_NoCoverageIsDataUnavailable(t *testing.T) {
	far := geo.Feature{ID: "far", Geometry: orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{5.01, 5.01}}.ToPolygon()}
	_, err := Extract(raster.Stack{waterScene("a", t0, raster.Band{1, 1, 1, 1}, nil)}, far, "water")
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))

	_, err = Extract(nil, pond, "water")
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestExtract_MissingBand(t *testing.T) {
	_, err := Extract(raster.Stack{waterScene("a", t0, raster.Band{1, 1, 1, 1}, nil)}, pond, "mndwi")
	require.Error(t, err)
	assert.ErrorContains(t, err, "mndwi")
}

func TestDaysWithData(t *testing.T) {
	zero, half := 0.0, 0.5
	points := []domain.TimeSeriesPoint{
		{Time: t0, Value: &zero},
		{Time: t0.AddDate(0, 0, 1), Value: nil},
		{Time: t0.AddDate(0, 0, 2), Value: &half},
	}

	days := DaysWithData(points)
	require.Len(t, days, 1)
	assert.Equal(t, domain.DayValue{Date: "2021 July 05", Value: 0.5}, days[0])
}

func TestPoint(t *testing.T) {
	p := Point(t0, 0.12345)
	assert.InDelta(t, 0.123, *p.Value, 0)
	assert.Nil(t, Point(t0, math.NaN()).Value)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":1625310000000,"value":0.123}`, string(b))
}
