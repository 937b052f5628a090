package mask

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

type fakeProbabilities struct {
	layers map[string]raster.Layer
	calls  int
}

func (f *fakeProbabilities) CloudProbability(_ context.Context, id string) (raster.Layer, error) {
	f.calls++
	l, ok := f.layers[id]
	if !ok {
		return raster.Layer{}, domain.DataUnavailable("cloud probability", "no layer for %s", id)
	}
	return l, nil
}

// s2Grid: 20x20 pixels at 10 m, about 0.0001° each.
var s2Grid = raster.Grid{Width: 20, Height: 20, OriginLon: -14, OriginLat: 15.5, PixelWidth: 0.0001, PixelHeight: 0.0001, Scale: 10}

func fillBlock(b raster.Band, g raster.Grid, c0, r0, c1, r1 int, v float64) {
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			b[g.Index(c, r)] = v
		}
	}
}

// sentinelScene has a cloud over cols 8..11 rows 8..11, a dark patch west
// of it at cols 2..5, and a second dark patch at cols 14..17 rows 14..17
// that no cloud can shade with the sun in the east.
func sentinelScene() (*raster.Scene, *fakeProbabilities) {
	g := s2Grid
	nir := raster.NewBand(g.Len(), 0.3)
	fillBlock(nir, g, 2, 8, 5, 11, 0.05)
	fillBlock(nir, g, 14, 14, 17, 17, 0.05)
	prob := raster.NewBand(g.Len(), 0)
	fillBlock(prob, g, 8, 8, 11, 11, 90)

	s := &raster.Scene{
		ID:     "S2A_20200801",
		Time:   time.Date(2020, 8, 1, 11, 30, 0, 0, time.UTC),
		Sensor: raster.SensorSentinel2,
		Grid:   g,
		Bands: map[string]raster.Band{
			"B8":  nir,
			"SCL": raster.NewBand(g.Len(), 4),
		},
		Properties: map[string]float64{raster.PropSolarAzimuth: 90, raster.PropSolarZenith: 30},
	}
	probs := &fakeProbabilities{layers: map[string]raster.Layer{s.ID: {Grid: g, Values: prob}}}
	return s, probs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ErodePixels = 1
	cfg.BufferMetres = 10
	return cfg
}

func TestSentinel2_CloudAndShadow(t *testing.T) {
	s, probs := sentinelScene()
	e := NewEngine(testConfig(), probs, slog.Default())

	out, err := e.Apply(context.Background(), s)
	require.NoError(t, err)
	g := s.Grid

	assert.False(t, out.Mask[g.Index(9, 9)], "cloud")
	assert.False(t, out.Mask[g.Index(3, 9)], "projected shadow on dark pixels")
	assert.True(t, out.Mask[g.Index(15, 15)], "dark but not shaded")
	assert.True(t, out.Mask[g.Index(0, 0)])
	assert.Equal(t, out.Mask, out.CloudMask)
	assert.Nil(t, s.Mask, "input scene untouched")
}

func TestSentinel2_WaterIsNotShadow(t *testing.T) {
	s, probs := sentinelScene()
	scl := s.Bands["SCL"]
	fillBlock(scl, s.Grid, 2, 8, 5, 11, 6)
	e := NewEngine(testConfig(), probs, slog.Default())

	out, err := e.Apply(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Mask[s.Grid.Index(3, 9)])
}

func TestSentinel2_MissingProbabilityDropsScene(t *testing.T) {
	s, _ := sentinelScene()
	e := NewEngine(testConfig(), &fakeProbabilities{}, slog.Default())

	out, err := e.Apply(context.Background(), s)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestApply_Idempotent(t *testing.T) {
	t.Run("sentinel2", func(t *testing.T) {
		s, probs := sentinelScene()
		e := NewEngine(testConfig(), probs, slog.Default())

		once, err := e.Apply(context.Background(), s)
		require.NoError(t, err)
		twice, err := e.Apply(context.Background(), once)
		require.NoError(t, err)
		assert.Equal(t, once.Mask, twice.Mask)
		assert.Equal(t, once.CloudMask, twice.CloudMask)
	})

	t.Run("landsat", func(t *testing.T) {
		s := landsatScene()
		e := NewEngine(DefaultConfig(), nil, slog.Default())

		once, err := e.Apply(context.Background(), s)
		require.NoError(t, err)
		twice, err := e.Apply(context.Background(), once)
		require.NoError(t, err)
		assert.Equal(t, once.Mask, twice.Mask)
	})
}

func landsatScene() *raster.Scene {
	g := raster.Grid{Width: 2, Height: 1, OriginLon: -14, OriginLat: 15, PixelWidth: 0.0003, PixelHeight: 0.0003, Scale: 30}
	return &raster.Scene{
		ID:     "LC08_20200801",
		Time:   time.Date(2020, 8, 1, 11, 20, 0, 0, time.UTC),
		Sensor: raster.SensorLandsat8,
		Grid:   g,
		Bands: map[string]raster.Band{
			"B2":  {0.05, 0.4},
			"B3":  {0.06, 0.4},
			"B4":  {0.05, 0.4},
			"B5":  {0.2, 0.5},
			"B6":  {0.1, 0.4},
			"B7":  {0.05, 0.3},
			"B10": {305, 280},
		},
		Properties: map[string]float64{raster.PropSunAzimuth: 70, raster.PropSunElevation: 60},
	}
}

func TestLandsat_CloudScore(t *testing.T) {
	s := landsatScene()
	e := NewEngine(DefaultConfig(), nil, slog.Default())

	out, err := e.Apply(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, raster.Mask{true, false}, out.Mask)
	assert.InDelta(t, 30.0, out.Properties[raster.PropZenith], 1e-9)
	_, had := s.Properties[raster.PropZenith]
	assert.False(t, had)
}

func TestLandsat_ComputesZenithWithoutMetadata(t *testing.T) {
	s := landsatScene()
	s.Properties = nil
	e := NewEngine(DefaultConfig(), nil, slog.Default())

	out, err := e.Apply(context.Background(), s)
	require.NoError(t, err)
	zen := out.Properties[raster.PropZenith]
	assert.Greater(t, zen, 0.0)
	assert.Less(t, zen, 90.0)
}

func TestCloudScore(t *testing.T) {
	assert.InDelta(t, 0.0, CloudScore(0.05, 0.06, 0.05, 0.2, 0.1, 0.05, 305), 1e-9)
	assert.InDelta(t, 100.0, CloudScore(0.4, 0.4, 0.4, 0.5, 0.4, 0.3, 280), 1e-9)
	// Thermal is optional.
	assert.InDelta(t, 100.0, CloudScore(0.4, 0.4, 0.4, 0.5, 0.4, 0.3, nan()), 1e-9)
	// Snow: high NDSI pulls the score down.
	assert.InDelta(t, 0.0, CloudScore(0.6, 0.6, 0.6, 0.5, 0.05, 0.05, 270), 1e-9)
}

func TestApply_UnsupportedSensor(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, slog.Default())
	_, err := e.Apply(context.Background(), &raster.Scene{ID: "x", Sensor: "modis"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.CloudProbability = 140
	cfg.ZScore = 0.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.ErrorContains(t, err, "cloud probability")
	assert.ErrorContains(t, err, "z-score")
}
