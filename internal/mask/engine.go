// Package mask derives per-pixel validity for scenes: per-scene cloud and
// cloud-shadow detection for each sensor family, and a temporal pass over a
// stack that removes anomalously dark pixels.
package mask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// ErrMissingBand is returned when a scene lacks a band detection needs.
var ErrMissingBand = errors.New("missing band")

// Config holds the detection thresholds.
type Config struct {
	// Sentinel-2
	CloudProbability     float64 // percent; cloud when probability > this
	DarkNIR              float64 // reflectance; shadow candidate when nir < this
	WaterClass           float64 // scene classification value marking water
	CloudHeight          float64 // metres
	ProjectionMultiplier float64 // shadow search distance in cloud heights
	ErodePixels          int
	BufferMetres         float64

	// Landsat
	CloudScoreMax float64 // clear when score <= this

	// Temporal dark outliers
	ZScore       float64
	MinDarkBands int
	DarkSum      float64
	DilatePixels int
	ShadowBands  []string
}

// DefaultConfig returns the calibrated thresholds.
func DefaultConfig() Config {
	return Config{
		CloudProbability:     40,
		DarkNIR:              0.175,
		WaterClass:           6,
		CloudHeight:          1000,
		ProjectionMultiplier: 3,
		ErodePixels:          2,
		BufferMetres:         100,
		CloudScoreMax:        5,
		ZScore:               -0.75,
		MinDarkBands:         2,
		DarkSum:              0.35,
		DilatePixels:         2,
		ShadowBands:          []string{raster.NIR, raster.SWIR1, raster.SWIR2},
	}
}

// Validate rejects thresholds outside their physical range.
func (c Config) Validate() error {
	var errs []error
	if c.CloudProbability < 0 || c.CloudProbability > 100 {
		errs = append(errs, fmt.Errorf("cloud probability threshold %g outside [0,100]", c.CloudProbability))
	}
	if c.CloudScoreMax < 0 || c.CloudScoreMax > 100 {
		errs = append(errs, fmt.Errorf("cloud score threshold %g outside [0,100]", c.CloudScoreMax))
	}
	if c.CloudHeight < 0 || c.ProjectionMultiplier < 0 || c.BufferMetres < 0 {
		errs = append(errs, errors.New("shadow projection distances must not be negative"))
	}
	if c.ErodePixels < 0 || c.DilatePixels < 0 {
		errs = append(errs, errors.New("morphology radii must not be negative"))
	}
	if c.ZScore >= 0 {
		errs = append(errs, fmt.Errorf("dark z-score threshold %g must be negative", c.ZScore))
	}
	if len(c.ShadowBands) == 0 || c.MinDarkBands < 1 || c.MinDarkBands > len(c.ShadowBands) {
		errs = append(errs, fmt.Errorf("dark band count %d invalid for %d shadow bands", c.MinDarkBands, len(c.ShadowBands)))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.Configuration("mask thresholds: %v", err)
	}
	return nil
}

// ProbabilitySource returns the cloud probability layer (percent) recorded
// for a scene id. A scene without one must yield a DataUnavailable error.
type ProbabilitySource interface {
	CloudProbability(ctx context.Context, sceneID string) (raster.Layer, error)
}

// Engine applies per-scene cloud detection.
type Engine struct {
	cfg    Config
	probs  ProbabilitySource
	logger *slog.Logger
}

// NewEngine creates an Engine. probs may be nil when no Sentinel-2 scenes
// are processed.
func NewEngine(cfg Config, probs ProbabilitySource, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, probs: probs, logger: logger}
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Apply returns a copy of s with CloudMask set to the detection result and
// Mask narrowed by it. Detection reads only reflectance and auxiliary
// layers, so applying it twice yields the same masks.
func (e *Engine) Apply(ctx context.Context, s *raster.Scene) (*raster.Scene, error) {
	var (
		out *raster.Scene
		err error
	)
	switch s.Sensor {
	case raster.SensorSentinel2:
		out, err = e.sentinel2(ctx, s)
	case raster.SensorLandsat8:
		out, err = e.landsat(s)
	default:
		return nil, domain.InvalidInput("mask scene", "scene %s: unsupported sensor %q", s.ID, s.Sensor)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("scene masked", "scene_id", s.ID, "sensor", s.Sensor,
		"clear_pixels", out.CloudMask.Count(), "pixels", s.Grid.Len())
	return out, nil
}

// withCloudMask records valid as the detection mask and narrows Mask by it.
func withCloudMask(s *raster.Scene, valid raster.Mask) *raster.Scene {
	out := s.Restrict(valid)
	out.CloudMask = valid
	return out
}

// band looks a band up by canonical name, falling back to the sensor's
// native id so detection works before and after renaming.
func band(s *raster.Scene, canonical string) (raster.Band, error) {
	if b, ok := s.Bands[canonical]; ok {
		return b, nil
	}
	if id, ok := raster.NativeBand(s.Sensor, canonical); ok {
		if b, ok := s.Bands[id]; ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("scene %s: %s: %w", s.ID, canonical, ErrMissingBand)
}

// sunPosition prefers scene metadata and falls back to computing it.
func sunPosition(s *raster.Scene, azKey, elevKey, zenKey string) SunPosition {
	az, okAz := s.Property(azKey)
	elev, okElev := s.Property(elevKey)
	if !okElev && zenKey != "" {
		if zen, ok := s.Property(zenKey); ok {
			elev, okElev = 90-zen, true
		}
	}
	if okAz && okElev {
		return SunPosition{AzimuthDeg: az, ElevationDeg: elev}
	}
	c := s.Footprint().Center()
	computed := SolarPosition(s.Time, c.Lon(), c.Lat())
	if okAz {
		computed.AzimuthDeg = az
	}
	if okElev {
		computed.ElevationDeg = elev
	}
	return computed
}
