// Package harmonize builds the single multi-sensor stack the classifier
// reads: query each sensor family, prefilter on metadata cloud cover,
// normalise to reflectance, mask clouds, rename to canonical bands, correct
// Sentinel-2 onto the Landsat scale, merge and run the temporal dark
// outlier pass.
package harmonize

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/mask"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// Drop reasons, used as metric labels.
const (
	DropCloudCover       = "cloud_cover"
	DropInvalid          = "invalid"
	DropCalibration      = "calibration"
	DropCloudProbability = "no_cloud_probability"
)

// SceneSource queries raw scenes from the imagery archive.
type SceneSource interface {
	QueryScenes(ctx context.Context, q raster.Query) (raster.Stack, error)
}

// Masker applies cloud detection per scene and the temporal pass per stack.
type Masker interface {
	Apply(ctx context.Context, s *raster.Scene) (*raster.Scene, error)
	TemporalDarkOutliers(st raster.Stack) raster.Stack
}

// Config controls harmonization.
type Config struct {
	Sensors       []raster.Sensor
	MaxCloudCover float64 // percent; scenes reporting more are rejected
	Bandpass      Bandpass
}

// DefaultConfig covers both sensor families with the published correction.
func DefaultConfig() Config {
	return Config{
		Sensors:       []raster.Sensor{raster.SensorLandsat8, raster.SensorSentinel2},
		MaxCloudCover: 75,
		Bandpass:      Sentinel2Bandpass(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Sensors) == 0 {
		return domain.Configuration("harmonize: no sensors configured")
	}
	if c.MaxCloudCover < 0 || c.MaxCloudCover > 100 {
		return domain.Configuration("harmonize: max cloud cover %g outside [0,100]", c.MaxCloudCover)
	}
	if err := c.Bandpass.Validate(); err != nil {
		return domain.Configuration("harmonize: %v", err)
	}
	return nil
}

// Harmonizer merges the configured sensor families into one stack.
type Harmonizer struct {
	source  SceneSource
	masker  Masker
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Harmonizer.
func New(source SceneSource, masker Masker, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Harmonizer {
	return &Harmonizer{source: source, masker: masker, cfg: cfg, logger: logger, metrics: metrics}
}

// Harmonize returns the merged stack for q.Bound over [q.From, q.To), newest
// first. q.Sensor is ignored; every configured family is queried.
func (h *Harmonizer) Harmonize(ctx context.Context, q raster.Query) (raster.Stack, error) {
	var (
		mu     sync.Mutex
		merged raster.Stack
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, sensor := range h.cfg.Sensors {
		sq := q
		sq.Sensor = sensor
		g.Go(func() error {
			st, err := h.sensorStack(ctx, sq)
			if err != nil {
				return err
			}
			mu.Lock()
			merged = append(merged, st...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Sensors finish in any order; ties on time break by sensor then id.
	slices.SortFunc(merged, func(a, b *raster.Scene) int {
		return cmp.Or(b.Time.Compare(a.Time), cmp.Compare(a.Sensor, b.Sensor), cmp.Compare(a.ID, b.ID))
	})
	merged = h.masker.TemporalDarkOutliers(merged)
	h.logger.Info("stack harmonized", "scenes", len(merged), "from", q.From, "to", q.To)
	return merged, nil
}

func (h *Harmonizer) sensorStack(ctx context.Context, q raster.Query) (raster.Stack, error) {
	if err := q.Validate(); err != nil {
		return nil, domain.InvalidInput("harmonize", "%v", err)
	}
	raw, err := h.source.QueryScenes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s scenes: %w", q.Sensor, err)
	}

	out := make(raster.Stack, 0, len(raw))
	for _, s := range raw {
		ready, reason, err := h.prepare(ctx, s)
		if err != nil {
			return nil, err
		}
		if ready == nil {
			h.drop(s, reason)
			continue
		}
		h.metrics.ScenesHarmonized.WithLabelValues(string(q.Sensor)).Inc()
		out = append(out, ready)
	}
	return out, nil
}

// prepare runs one scene through prefilter, normalisation, masking, renaming
// and correction. A nil scene with a reason means the scene is dropped; an
// error aborts the whole stack.
func (h *Harmonizer) prepare(ctx context.Context, s *raster.Scene) (*raster.Scene, string, error) {
	if err := s.Validate(); err != nil {
		h.logger.Warn("invalid scene", "scene_id", s.ID, "error", err)
		return nil, DropInvalid, nil
	}
	if cover, ok := cloudCover(s); ok && cover > h.cfg.MaxCloudCover {
		return nil, DropCloudCover, nil
	}

	toa, err := normalize(s)
	if errors.Is(err, errCalibration) {
		h.logger.Warn("scene not calibrated", "scene_id", s.ID, "error", err)
		return nil, DropCalibration, nil
	}
	if err != nil {
		h.logger.Warn("scene not normalised", "scene_id", s.ID, "error", err)
		return nil, DropInvalid, nil
	}

	masked, err := h.masker.Apply(ctx, toa)
	switch {
	case errors.Is(err, mask.ErrMissingBand):
		h.logger.Warn("scene missing detection bands", "scene_id", s.ID, "error", err)
		return nil, DropInvalid, nil
	case errors.Is(err, domain.ErrDataUnavailable):
		h.logger.Warn("scene has no cloud mask", "scene_id", s.ID, "error", err)
		return nil, DropCloudProbability, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("mask scene %s: %w", s.ID, err)
	}

	renamed, err := rename(masked)
	if err != nil {
		h.logger.Warn("scene missing reflectance bands", "scene_id", s.ID, "error", err)
		return nil, DropInvalid, nil
	}
	if s.Sensor == raster.SensorSentinel2 {
		renamed = h.cfg.Bandpass.Apply(renamed)
	}
	return renamed, "", nil
}

func (h *Harmonizer) drop(s *raster.Scene, reason string) {
	h.metrics.ScenesDropped.WithLabelValues(string(s.Sensor), reason).Inc()
	h.logger.Debug("scene dropped", "scene_id", s.ID, "sensor", s.Sensor, "reason", reason)
}

func cloudCover(s *raster.Scene) (float64, bool) {
	if v, ok := s.Property(raster.PropCloudCover); ok {
		return v, true
	}
	return s.Property(raster.PropCloudCoverS2)
}
