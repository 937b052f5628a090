// Package classify turns harmonized scenes into per-pixel water evidence and
// reduces it to an ordinal status per pond.
package classify

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/index"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// Bands added to every classified scene.
const (
	// BandWater is 1 where the primary test votes water, 0 where it does
	// not, NaN where the pixel is masked.
	BandWater = "water"
	// BandOccurrence is the fraction of valid tests voting water.
	BandOccurrence = "occurrence"
	// BandIndex is the continuous primary index.
	BandIndex = index.MNDWI
)

// Config controls classification.
type Config struct {
	Tests            []index.Test // the first test is primary
	MinValidFraction float64      // below this a pond is no-data
	PartialAbove     float64
	FullAbove        float64
}

// DefaultConfig returns the calibrated battery and pond thresholds.
func DefaultConfig() Config {
	return Config{
		Tests:            index.DefaultTests(),
		MinValidFraction: 0.5,
		PartialAbove:     0.25,
		FullAbove:        0.75,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Tests) == 0 {
		return domain.Configuration("classify: no index tests configured")
	}
	for _, t := range c.Tests {
		if _, ok := index.Lookup(t.Index); !ok {
			return domain.Configuration("classify: unknown index %q", t.Index)
		}
	}
	if c.MinValidFraction <= 0 || c.MinValidFraction > 1 {
		return domain.Configuration("classify: min valid fraction %g outside (0,1]", c.MinValidFraction)
	}
	if !(c.PartialAbove < c.FullAbove) {
		return domain.Configuration("classify: partial threshold %g must be below full threshold %g", c.PartialAbove, c.FullAbove)
	}
	return nil
}

// Classifier evaluates the index battery.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Classifier.
func New(cfg Config, logger *slog.Logger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Scene returns a copy of s carrying the water, occurrence and primary index
// bands. Masked pixels carry no evidence in any of them.
func (c *Classifier) Scene(s *raster.Scene) (*raster.Scene, error) {
	primary := c.cfg.Tests[0]
	idx, err := index.Compute(s, primary.Index)
	if err != nil {
		return nil, err
	}
	votes := make([]raster.Band, len(c.cfg.Tests))
	for i, t := range c.cfg.Tests {
		if votes[i], err = t.Apply(s); err != nil {
			return nil, err
		}
	}

	n := s.Grid.Len()
	occurrence := make(raster.Band, n)
	for i := 0; i < n; i++ {
		var valid, water float64
		for _, v := range votes {
			if !math.IsNaN(v[i]) {
				valid++
				water += v[i]
			}
		}
		if valid == 0 {
			occurrence[i] = math.NaN()
			continue
		}
		occurrence[i] = water / valid
	}
	for i := range idx {
		if !s.Valid(i) {
			idx[i] = math.NaN()
		}
	}

	out := s.Clone()
	out.Bands[BandWater] = votes[0]
	out.Bands[BandOccurrence] = occurrence
	out.Bands[BandIndex] = idx
	return out, nil
}

// Stack classifies every scene.
func (c *Classifier) Stack(st raster.Stack) (raster.Stack, error) {
	out := make(raster.Stack, len(st))
	for i, s := range st {
		cs, err := c.Scene(s)
		if err != nil {
			return nil, fmt.Errorf("classify scene %s: %w", s.ID, err)
		}
		out[i] = cs
	}
	return out, nil
}

// Latest returns the most recent scene whose footprint intersects f.
func Latest(st raster.Stack, f geo.Feature) (*raster.Scene, error) {
	candidates := st.Intersecting(f.Bound()).SortDescending()
	if len(candidates) == 0 {
		return nil, domain.DataUnavailable("latest scene", "no scene covers feature %s", f.ID)
	}
	return candidates[0], nil
}

// Score maps a water fraction to dry, partial or likely-full by adding one
// for each threshold strictly exceeded.
func (c *Classifier) Score(v float64) domain.PondClass {
	score := 0
	if v > c.cfg.PartialAbove {
		score++
	}
	if v > c.cfg.FullAbove {
		score++
	}
	return domain.PondClass(score)
}

// Feature classifies pond f from the latest scene covering it. st must be
// the output of Stack. Any failure is returned as an error; there is no
// fallback class.
func (c *Classifier) Feature(st raster.Stack, f geo.Feature) (domain.FeatureClass, error) {
	s, err := Latest(st, f)
	if err != nil {
		return domain.FeatureClass{}, err
	}
	if _, ok := s.Bands[BandWater]; !ok {
		if s, err = c.Scene(s); err != nil {
			return domain.FeatureClass{}, fmt.Errorf("classify feature %s: %w", f.ID, err)
		}
	}
	stats, err := raster.ReduceScene(s, BandWater, f.Geometry)
	if err != nil {
		return domain.FeatureClass{}, fmt.Errorf("classify feature %s: %w", f.ID, err)
	}

	fc := domain.FeatureClass{
		FeatureID:     f.ID,
		ValidFraction: stats.ValidFraction(),
		SceneID:       s.ID,
		SceneTime:     s.Time,
	}
	if stats.Valid == 0 || fc.ValidFraction < c.cfg.MinValidFraction {
		fc.Class = domain.ClassNoData
	} else {
		mean := stats.Mean
		fc.WaterFraction = &mean
		fc.Class = c.Score(mean)
	}
	fc.Label = fc.Class.String()
	c.logger.Debug("pond classified", "feature_id", f.ID, "scene_id", s.ID,
		"class", fc.Label, "valid_fraction", fc.ValidFraction)
	return fc, nil
}
