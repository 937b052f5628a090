// Package inventory loads the static water-body inventory from GeoJSON and
// answers lookups by point and by id.
package inventory

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
)

// Property keys of the pond layer.
const (
	PropID   = "uniqID"
	PropName = "Nom"
	// PropAdminName is the name key of the administrative layers.
	PropAdminName = "nom"
)

// Paths locates the GeoJSON layers. Only Ponds is required.
type Paths struct {
	Ponds           string
	Regions         string
	Communes        string
	Arrondissements string
	Villages        string
}

// Inventory is an immutable set of ponds. It is safe for concurrent use.
type Inventory struct {
	features []geo.Feature
	byID     map[string]int
}

// Load reads the pond layer and places every pond in the administrative
// tree by the areas containing its centroid.
func Load(p Paths) (*Inventory, error) {
	ponds, err := readCollection(p.Ponds)
	if err != nil {
		return nil, err
	}
	admin := map[string][]namedArea{}
	for level, path := range map[string]string{
		"region":         p.Regions,
		"commune":        p.Communes,
		"arrondissement": p.Arrondissements,
		"village":        p.Villages,
	} {
		if path == "" {
			continue
		}
		fc, err := readCollection(path)
		if err != nil {
			return nil, err
		}
		admin[level] = namedAreas(fc)
	}
	return build(ponds, admin)
}

// FromCollection builds an inventory from an already parsed pond layer.
func FromCollection(fc *geojson.FeatureCollection) (*Inventory, error) {
	return build(fc, nil)
}

func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Configuration("inventory: read %s: %v", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, domain.Configuration("inventory: parse %s: %v", path, err)
	}
	return fc, nil
}

type namedArea struct {
	name string
	geom orb.Geometry
}

func namedAreas(fc *geojson.FeatureCollection) []namedArea {
	out := make([]namedArea, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, namedArea{name: f.Properties.MustString(PropAdminName, ""), geom: f.Geometry})
	}
	return out
}

func containing(areas []namedArea, p orb.Point) string {
	for _, a := range areas {
		if geo.Contains(a.geom, p) {
			return a.name
		}
	}
	return ""
}

func build(fc *geojson.FeatureCollection, admin map[string][]namedArea) (*Inventory, error) {
	inv := &Inventory{byID: make(map[string]int, len(fc.Features))}
	for i, gf := range fc.Features {
		switch gf.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		case nil:
			return nil, domain.Configuration("inventory: feature %d has no geometry", i)
		default:
			return nil, domain.Configuration("inventory: feature %d is a %s, not a polygon", i, gf.Geometry.GeoJSONType())
		}
		id := featureID(gf)
		if id == "" {
			return nil, domain.Configuration("inventory: feature %d has no %s", i, PropID)
		}
		if _, dup := inv.byID[id]; dup {
			return nil, domain.Configuration("inventory: duplicate pond id %q", id)
		}

		f := geo.Feature{
			ID:         id,
			Name:       gf.Properties.MustString(PropName, ""),
			Geometry:   gf.Geometry,
			Area:       geo.Area(gf.Geometry),
			Attributes: attributes(gf.Properties),
		}
		c := f.Centroid()
		f.Hierarchy = geo.Hierarchy{
			Region:         containing(admin["region"], c),
			Commune:        containing(admin["commune"], c),
			Arrondissement: containing(admin["arrondissement"], c),
			Village:        containing(admin["village"], c),
		}
		inv.byID[id] = len(inv.features)
		inv.features = append(inv.features, f)
	}
	return inv, nil
}

// featureID prefers the uniqID property and falls back to the GeoJSON id.
func featureID(f *geojson.Feature) string {
	if v, ok := f.Properties[PropID]; ok {
		return stringify(v)
	}
	if f.ID != nil {
		return stringify(f.ID)
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func attributes(props geojson.Properties) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = stringify(v)
	}
	return out
}

// Len is the number of ponds.
func (inv *Inventory) Len() int { return len(inv.features) }

// Locate returns the first pond, in file order, containing p.
func (inv *Inventory) Locate(p orb.Point) (geo.Feature, bool) {
	for _, f := range inv.features {
		if f.Bound().Contains(p) && f.Contains(p) {
			return f, true
		}
	}
	return geo.Feature{}, false
}

// Get returns the pond with the given id.
func (inv *Inventory) Get(id string) (geo.Feature, bool) {
	i, ok := inv.byID[id]
	if !ok {
		return geo.Feature{}, false
	}
	return inv.features[i], true
}

// All returns every pond in file order. The slice must not be modified.
func (inv *Inventory) All() []geo.Feature { return inv.features }

// Bound is the extent of the whole inventory.
func (inv *Inventory) Bound() orb.Bound {
	if len(inv.features) == 0 {
		return orb.Bound{}
	}
	b := inv.features[0].Bound()
	for _, f := range inv.features[1:] {
		b = b.Union(f.Bound())
	}
	return b
}
