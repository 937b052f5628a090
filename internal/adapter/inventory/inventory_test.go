package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

const pondsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"uniqID": 101, "Nom": "Mare de Widou", "Sup": 2.5},
     "geometry": {"type": "Polygon", "coordinates": [[[-15.0,15.0],[-14.99,15.0],[-14.99,15.01],[-15.0,15.01],[-15.0,15.0]]]}},
    {"type": "Feature",
     "properties": {"uniqID": "b-7", "Nom": "-"},
     "geometry": {"type": "Polygon", "coordinates": [[[-14.5,15.5],[-14.49,15.5],[-14.49,15.51],[-14.5,15.51],[-14.5,15.5]]]}}
  ]
}`

const regionsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"nom": "Louga"},
     "geometry": {"type": "Polygon", "coordinates": [[[-16,14],[-14.7,14],[-14.7,16],[-16,16],[-16,14]]]}},
    {"type": "Feature", "properties": {"nom": "Matam"},
     "geometry": {"type": "Polygon", "coordinates": [[[-14.7,14],[-13,14],[-13,16],[-14.7,16],[-14.7,14]]]}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	inv, err := Load(Paths{
		Ponds:   writeFile(t, dir, "ponds.geojson", pondsJSON),
		Regions: writeFile(t, dir, "regions.geojson", regionsJSON),
	})
	require.NoError(t, err)
	require.Equal(t, 2, inv.Len())

	f, ok := inv.Get("101")
	require.True(t, ok)
	assert.Equal(t, "Mare de Widou", f.DisplayName())
	assert.Equal(t, "Louga", f.Hierarchy.Region)
	assert.Empty(t, f.Hierarchy.Commune)
	assert.Equal(t, "2.5", f.Attributes["Sup"])
	// About 1.07 km by 1.11 km at 15°N.
	assert.InDelta(t, 1.19e6, f.Area, 0.02e6)

	f, ok = inv.Get("b-7")
	require.True(t, ok)
	assert.Equal(t, "Unnamed Pond", f.DisplayName())
	assert.Equal(t, "Matam", f.Hierarchy.Region)
}

func TestLocate(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(pondsJSON))
	require.NoError(t, err)
	inv, err := FromCollection(fc)
	require.NoError(t, err)

	f, ok := inv.Locate(orb.Point{-14.995, 15.005})
	require.True(t, ok)
	assert.Equal(t, "101", f.ID)

	_, ok = inv.Locate(orb.Point{-14.7, 15.2})
	assert.False(t, ok)

	_, ok = inv.Get("missing")
	assert.False(t, ok)

	b := inv.Bound()
	assert.Equal(t, orb.Point{-15, 15}, b.Min)
	assert.Equal(t, orb.Point{-14.49, 15.51}, b.Max)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not geojson", `{"type": "nope"`, "parse"},
		{"point geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"uniqID":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, "not a polygon"},
		{"missing id", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`, "no uniqID"},
		{"duplicate id", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"uniqID":1},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
			{"type":"Feature","properties":{"uniqID":1},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Paths{Ponds: writeFile(t, dir, "ponds.geojson", tt.content)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Load(Paths{Ponds: filepath.Join(dir, "absent.geojson")})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
