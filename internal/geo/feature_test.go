package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func square(lon, lat, side float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat}, {lon + side, lat}, {lon + side, lat + side}, {lon, lat + side}, {lon, lat},
	}}
}

func TestFeature_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"regular name", "Mare de Tatki", "Mare de Tatki"},
		{"empty", "", UnnamedFeature},
		{"single char placeholder", "-", UnnamedFeature},
		{"whitespace padded", "  Ndiaye  ", "Ndiaye"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Feature{Name: tt.input}.DisplayName())
		})
	}
}

func TestContains(t *testing.T) {
	poly := square(-15, 15, 0.01)

	assert.True(t, Contains(poly, orb.Point{-14.995, 15.005}))
	assert.False(t, Contains(poly, orb.Point{-14.98, 15.005}))
	assert.True(t, Contains(orb.MultiPolygon{square(0, 0, 1), poly}, orb.Point{-14.995, 15.005}))
	assert.False(t, Contains(orb.LineString{{0, 0}, {1, 1}}, orb.Point{0.5, 0.5}))
}

func TestArea_IsGeodesicSquareMetres(t *testing.T) {
	// 0.01° at the equator is about 1113 m on a side.
	a := Area(square(0, 0, 0.01))
	assert.InDelta(t, 1113.2*1113.2, a, 0.01*a)
}

func TestValidLonLat(t *testing.T) {
	assert.True(t, ValidLonLat(-15.2, 15.1))
	assert.False(t, ValidLonLat(-181, 0))
	assert.False(t, ValidLonLat(0, 91))
	assert.False(t, ValidLonLat(math.NaN(), 0))
	assert.False(t, ValidLonLat(0, math.Inf(1)))
}
