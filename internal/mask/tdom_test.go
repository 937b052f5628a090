package mask

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

func nan() float64 { return math.NaN() }

var tdomGrid = raster.Grid{Width: 5, Height: 5, OriginLon: -14, OriginLat: 15, PixelWidth: 0.0003, PixelHeight: 0.0003, Scale: 30}

func harmonizedScene(id string, day int) *raster.Scene {
	g := tdomGrid
	return &raster.Scene{
		ID:     id,
		Time:   time.Date(2020, 8, day, 11, 0, 0, 0, time.UTC),
		Sensor: raster.SensorLandsat8,
		Grid:   g,
		Bands: map[string]raster.Band{
			raster.NIR:   raster.NewBand(g.Len(), 0.25),
			raster.SWIR1: raster.NewBand(g.Len(), 0.25),
			raster.SWIR2: raster.NewBand(g.Len(), 0.125),
		},
	}
}

func darkStack() raster.Stack {
	st := raster.Stack{}
	for i := 1; i <= 5; i++ {
		st = append(st, harmonizedScene(string(rune('a'+i-1)), i))
	}
	centre := tdomGrid.Index(2, 2)
	for _, b := range []string{raster.NIR, raster.SWIR1, raster.SWIR2} {
		st[0].Bands[b][centre] = 0.05
	}
	return st
}

func TestTemporalDarkOutliers(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, slog.Default())
	out := e.TemporalDarkOutliers(darkStack())
	require.Len(t, out, 5)

	g := tdomGrid
	// The flagged centre is dilated by a radius-2 disc: 13 pixels.
	assert.Equal(t, g.Len()-13, out[0].Mask.Count())
	assert.False(t, out[0].Mask[g.Index(2, 2)])
	assert.False(t, out[0].Mask[g.Index(2, 0)])
	assert.True(t, out[0].Mask[g.Index(0, 0)])

	for _, s := range out[1:] {
		assert.Equal(t, g.Len(), s.Mask.Count(), s.ID)
	}
}

func TestTemporalDarkOutliers_BrightAnomalyIsKept(t *testing.T) {
	st := darkStack()
	centre := tdomGrid.Index(2, 2)
	for _, b := range []string{raster.NIR, raster.SWIR1, raster.SWIR2} {
		st[0].Bands[b][centre] = 0.6
	}
	e := NewEngine(DefaultConfig(), nil, slog.Default())
	out := e.TemporalDarkOutliers(st)
	assert.Equal(t, tdomGrid.Len(), out[0].Mask.Count())
}

func TestTemporalDarkOutliers_IgnoresCloudyPixelsInStatistics(t *testing.T) {
	st := darkStack()
	// With the only dark observation hidden behind the cloud mask and the
	// remaining samples constant, nothing can be an outlier.
	cm := raster.NewMask(tdomGrid.Len(), true)
	cm[tdomGrid.Index(2, 2)] = false
	st[0].CloudMask = cm
	st[0].Mask = cm.Clone()

	e := NewEngine(DefaultConfig(), nil, slog.Default())
	out := e.TemporalDarkOutliers(st)
	assert.Equal(t, cm, out[0].Mask)
}

func TestTemporalDarkOutliers_Idempotent(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, slog.Default())
	once := e.TemporalDarkOutliers(darkStack())
	twice := e.TemporalDarkOutliers(once)
	for i := range once {
		assert.Equal(t, once[i].Mask, twice[i].Mask, once[i].ID)
	}
}

func TestReferenceGrid_UsesCoarsestScale(t *testing.T) {
	fine := harmonizedScene("fine", 1)
	fine.Grid = raster.Grid{Width: 10, Height: 10, OriginLon: -14.001, OriginLat: 15, PixelWidth: 0.0001, PixelHeight: 0.0001, Scale: 10}
	coarse := harmonizedScene("coarse", 2)

	ref := referenceGrid(raster.Stack{fine, coarse})
	assert.InDelta(t, 30.0, ref.Scale, 0)
	assert.InDelta(t, -14.001, ref.OriginLon, 1e-12)
	assert.True(t, ref.Bound().Contains(coarse.Footprint().Max))
}

func TestSolarPosition(t *testing.T) {
	equinox := time.Date(2020, 3, 20, 0, 0, 0, 0, time.UTC)

	morning := SolarPosition(equinox.Add(8*time.Hour), 0, 15)
	assert.InDelta(t, 29, morning.ElevationDeg, 2)
	assert.Greater(t, morning.AzimuthDeg, 60.0)
	assert.Less(t, morning.AzimuthDeg, 120.0)

	afternoon := SolarPosition(equinox.Add(16*time.Hour), 0, 15)
	assert.Greater(t, afternoon.AzimuthDeg, 240.0)
	assert.Less(t, afternoon.AzimuthDeg, 300.0)

	night := SolarPosition(equinox, 0, 15)
	assert.Less(t, night.ElevationDeg, 0.0)
	assert.InDelta(t, 90-morning.ElevationDeg, morning.ZenithDeg(), 1e-12)
}
