// Package geo holds the water-body vector model: polygon features, their
// administrative placement, point containment and geodesic area.
package geo

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// UnnamedFeature is shown for ponds whose inventory name is missing or a
// single placeholder character.
const UnnamedFeature = "Unnamed Pond"

// Hierarchy places a feature in the region → commune → arrondissement →
// village administrative tree.
type Hierarchy struct {
	Region         string
	Commune        string
	Arrondissement string
	Village        string
}

// Feature is an immutable water-body polygon from the static inventory.
type Feature struct {
	ID         string
	Name       string
	Geometry   orb.Geometry // orb.Polygon or orb.MultiPolygon, lon/lat
	Area       float64      // m²
	Hierarchy  Hierarchy
	Attributes map[string]string
}

// DisplayName returns the inventory name, or UnnamedFeature when the name
// is too short to be meaningful.
func (f Feature) DisplayName() string {
	name := strings.TrimSpace(f.Name)
	if len(name) < 2 {
		return UnnamedFeature
	}
	return name
}

// Bound is the lon/lat bounding box of the feature.
func (f Feature) Bound() orb.Bound {
	return f.Geometry.Bound()
}

// Contains reports whether the lon/lat point lies inside the feature.
func (f Feature) Contains(p orb.Point) bool {
	return Contains(f.Geometry, p)
}

// Centroid returns the area-weighted centroid of the feature.
func (f Feature) Centroid() orb.Point {
	c, _ := planar.CentroidArea(f.Geometry)
	return c
}

// Contains reports point-in-polygon containment for polygonal geometries.
// Any other geometry type contains nothing.
func Contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Bound:
		return geom.Contains(p)
	default:
		return false
	}
}

// Area returns the geodesic area of g in square metres.
func Area(g orb.Geometry) float64 {
	return math.Abs(orbgeo.Area(g))
}

// ValidLonLat reports whether lon/lat are finite WGS-84 coordinates.
func ValidLonLat(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
