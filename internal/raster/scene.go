package raster

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/paulmach/orb"
)

// Sensor identifies the instrument family a scene came from.
type Sensor string

const (
	// SensorLandsat8 is the 30 m OLI/TIRS family.
	SensorLandsat8 Sensor = "landsat8"
	// SensorSentinel2 is the 10–20 m MSI family.
	SensorSentinel2 Sensor = "sentinel2"
)

// Canonical band names shared by every harmonized scene.
const (
	Blue  = "blue"
	Green = "green"
	Red   = "red"
	NIR   = "nir"
	SWIR1 = "swir1"
	SWIR2 = "swir2"
)

// CanonicalBands lists the harmonized reflectance bands in order.
var CanonicalBands = []string{Blue, Green, Red, NIR, SWIR1, SWIR2}

// Auxiliary band names that survive until masking.
const (
	// Thermal is the Landsat brightness temperature band (Kelvin).
	Thermal = "tir"
	// SceneClass is the Sentinel-2 scene classification layer.
	SceneClass = "SCL"
)

// nativeBands maps canonical names to the archive's band ids per sensor.
var nativeBands = map[Sensor]map[string]string{
	SensorLandsat8: {
		Blue: "B2", Green: "B3", Red: "B4", NIR: "B5", SWIR1: "B6", SWIR2: "B7", Thermal: "B10",
	},
	SensorSentinel2: {
		Blue: "B2", Green: "B3", Red: "B4", NIR: "B8", SWIR1: "B11", SWIR2: "B12", SceneClass: "SCL",
	},
}

// NativeBand returns the archive band id for a canonical band of sensor.
func NativeBand(sensor Sensor, canonical string) (string, bool) {
	id, ok := nativeBands[sensor][canonical]
	return id, ok
}

// Well-known scene property keys.
const (
	PropCloudCover   = "CLOUD_COVER"
	PropCloudCoverS2 = "CLOUD_COVERAGE_ASSESSMENT"
	PropSunAzimuth   = "SUN_AZIMUTH"
	PropSunElevation = "SUN_ELEVATION"
	PropSolarAzimuth = "MEAN_SOLAR_AZIMUTH_ANGLE"
	PropSolarZenith  = "MEAN_SOLAR_ZENITH_ANGLE"
	PropZenith       = "SOLAR_ZENITH_ANGLE"
	PropReflectance  = "REFLECTANCE" // 1 when bands are already TOA reflectance
)

// Scene is one acquisition on a single grid. Scenes are treated as values:
// every stage returns a new Scene and leaves its input untouched.
type Scene struct {
	ID         string
	Time       time.Time
	Sensor     Sensor
	Grid       Grid
	Bands      map[string]Band
	Mask       Mask // validity; nil means all valid
	CloudMask  Mask // validity from per-scene cloud/shadow detection only
	Properties map[string]float64
}

// Validate checks that every band matches the grid.
func (s *Scene) Validate() error {
	if err := s.Grid.Validate(); err != nil {
		return fmt.Errorf("scene %s: %w", s.ID, err)
	}
	for name, b := range s.Bands {
		if len(b) != s.Grid.Len() {
			return fmt.Errorf("scene %s: band %s has %d values, grid expects %d", s.ID, name, len(b), s.Grid.Len())
		}
	}
	if s.Mask != nil && len(s.Mask) != s.Grid.Len() {
		return fmt.Errorf("scene %s: mask has %d values, grid expects %d", s.ID, len(s.Mask), s.Grid.Len())
	}
	return nil
}

// Band returns a named band.
func (s *Scene) Band(name string) (Band, error) {
	b, ok := s.Bands[name]
	if !ok {
		return nil, fmt.Errorf("scene %s: missing band %q", s.ID, name)
	}
	return b, nil
}

// Property returns a numeric property.
func (s *Scene) Property(key string) (float64, bool) {
	v, ok := s.Properties[key]
	return v, ok
}

// Footprint is the lon/lat bound of the scene grid.
func (s *Scene) Footprint() orb.Bound { return s.Grid.Bound() }

// Valid reports whether pixel i is valid under the scene mask.
func (s *Scene) Valid(i int) bool { return s.Mask == nil || s.Mask[i] }

// Clone returns a copy whose maps can be changed without touching s. Band
// slices are shared; stages replace bands instead of writing into them.
func (s *Scene) Clone() *Scene {
	c := *s
	c.Bands = maps.Clone(s.Bands)
	c.Properties = maps.Clone(s.Properties)
	if c.Bands == nil {
		c.Bands = map[string]Band{}
	}
	if c.Properties == nil {
		c.Properties = map[string]float64{}
	}
	return &c
}

// WithBand returns a copy of s carrying band b under name.
func (s *Scene) WithBand(name string, b Band) *Scene {
	c := s.Clone()
	c.Bands[name] = b
	return c
}

// WithProperty returns a copy of s with a property set.
func (s *Scene) WithProperty(key string, v float64) *Scene {
	c := s.Clone()
	c.Properties[key] = v
	return c
}

// Restrict returns a copy of s whose mask is s.Mask AND m. Restrict can only
// invalidate pixels, never revalidate them.
func (s *Scene) Restrict(m Mask) *Scene {
	c := s.Clone()
	c.Mask = s.Mask.And(m)
	return c
}

// Select returns a copy holding only the named bands, renamed through
// rename (old → new). Bands missing from s are reported as an error.
func (s *Scene) Select(rename map[string]string) (*Scene, error) {
	c := s.Clone()
	c.Bands = make(map[string]Band, len(rename))
	for from, to := range rename {
		b, err := s.Band(from)
		if err != nil {
			return nil, err
		}
		c.Bands[to] = b
	}
	return c, nil
}

// Stack is an ordered sequence of scenes.
type Stack []*Scene

// SortDescending orders the stack newest first. Ties keep their order.
func (st Stack) SortDescending() Stack {
	out := slices.Clone(st)
	slices.SortStableFunc(out, func(a, b *Scene) int { return b.Time.Compare(a.Time) })
	return out
}

// SortAscending orders the stack oldest first. Ties keep their order.
func (st Stack) SortAscending() Stack {
	out := slices.Clone(st)
	slices.SortStableFunc(out, func(a, b *Scene) int { return a.Time.Compare(b.Time) })
	return out
}

// Filter keeps scenes for which keep returns true.
func (st Stack) Filter(keep func(*Scene) bool) Stack {
	out := make(Stack, 0, len(st))
	for _, s := range st {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Intersecting keeps scenes whose footprint intersects b.
func (st Stack) Intersecting(b orb.Bound) Stack {
	return st.Filter(func(s *Scene) bool { return s.Footprint().Intersects(b) })
}

// Between keeps scenes with from <= Time < to.
func (st Stack) Between(from, to time.Time) Stack {
	return st.Filter(func(s *Scene) bool { return !s.Time.Before(from) && s.Time.Before(to) })
}

// Map applies f to every scene.
func (st Stack) Map(f func(*Scene) *Scene) Stack {
	out := make(Stack, len(st))
	for i, s := range st {
		out[i] = f(s)
	}
	return out
}
