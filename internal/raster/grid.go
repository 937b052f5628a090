// Package raster is the in-core model of materialized imagery: north-up
// geographic grids, float bands with NaN as no-data, boolean masks, scenes
// and stacks of scenes, plus the few spatial operators the pipeline needs
// (zonal reduction, focal morphology, directional projection, nearest
// neighbour resampling).
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Grid georeferences a raster. The origin is the top-left corner in lon/lat
// and pixel sizes are in degrees. Scale is the nominal ground resolution in
// metres and is the sampling scale used for aggregation.
type Grid struct {
	Width       int
	Height      int
	OriginLon   float64
	OriginLat   float64
	PixelWidth  float64
	PixelHeight float64
	Scale       float64
}

// Validate rejects degenerate grids.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid size %dx%d must be positive", g.Width, g.Height)
	}
	if g.PixelWidth <= 0 || g.PixelHeight <= 0 {
		return fmt.Errorf("pixel size %gx%g must be positive", g.PixelWidth, g.PixelHeight)
	}
	if g.Scale <= 0 {
		return fmt.Errorf("scale %g must be positive", g.Scale)
	}
	return nil
}

// Len is the number of pixels.
func (g Grid) Len() int { return g.Width * g.Height }

// Index converts a column/row pair into a flat pixel index.
func (g Grid) Index(col, row int) int { return row*g.Width + col }

// ColRow converts a flat pixel index back into column/row.
func (g Grid) ColRow(i int) (col, row int) { return i % g.Width, i / g.Width }

// InBounds reports whether col/row address a pixel of the grid.
func (g Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Width && row < g.Height
}

// Center returns the lon/lat of a pixel centre.
func (g Grid) Center(col, row int) orb.Point {
	return orb.Point{
		g.OriginLon + (float64(col)+0.5)*g.PixelWidth,
		g.OriginLat - (float64(row)+0.5)*g.PixelHeight,
	}
}

// Locate returns the pixel containing the lon/lat point.
func (g Grid) Locate(p orb.Point) (col, row int, ok bool) {
	col = int(math.Floor((p.Lon() - g.OriginLon) / g.PixelWidth))
	row = int(math.Floor((g.OriginLat - p.Lat()) / g.PixelHeight))
	return col, row, g.InBounds(col, row)
}

// Bound is the lon/lat footprint of the grid.
func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginLon, g.OriginLat - float64(g.Height)*g.PixelHeight},
		Max: orb.Point{g.OriginLon + float64(g.Width)*g.PixelWidth, g.OriginLat},
	}
}

// PixelArea is the nominal pixel area in square metres.
func (g Grid) PixelArea() float64 { return g.Scale * g.Scale }

// Window returns the inclusive column/row range of pixels whose centres
// may fall inside b. ok is false when b does not overlap the grid.
func (g Grid) Window(b orb.Bound) (c0, r0, c1, r1 int, ok bool) {
	c0 = int(math.Floor((b.Min.Lon()-g.OriginLon)/g.PixelWidth - 0.5))
	c1 = int(math.Ceil((b.Max.Lon()-g.OriginLon)/g.PixelWidth - 0.5))
	r0 = int(math.Floor((g.OriginLat-b.Max.Lat())/g.PixelHeight - 0.5))
	r1 = int(math.Ceil((g.OriginLat-b.Min.Lat())/g.PixelHeight - 0.5))
	c0, r0 = max(c0, 0), max(r0, 0)
	c1, r1 = min(c1, g.Width-1), min(r1, g.Height-1)
	return c0, r0, c1, r1, c0 <= c1 && r0 <= r1
}

// snap absorbs floating point noise when a bound is a whole number of pixels.
const snap = 1e-9

// GridFor builds a grid covering b at the given pixel size and scale.
func GridFor(b orb.Bound, pixelWidth, pixelHeight, scale float64) Grid {
	return Grid{
		Width:       max(1, int(math.Ceil((b.Max.Lon()-b.Min.Lon())/pixelWidth-snap))),
		Height:      max(1, int(math.Ceil((b.Max.Lat()-b.Min.Lat())/pixelHeight-snap))),
		OriginLon:   b.Min.Lon(),
		OriginLat:   b.Max.Lat(),
		PixelWidth:  pixelWidth,
		PixelHeight: pixelHeight,
		Scale:       scale,
	}
}

// Band is one layer of pixel values. NaN marks no data.
type Band []float64

// NewBand returns a band of n pixels filled with v.
func NewBand(n int, v float64) Band {
	b := make(Band, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// Layer is a single georeferenced band, used for auxiliary inputs such as
// cloud probability, elevation and precipitation.
type Layer struct {
	Grid   Grid
	Values Band
}

// Validate checks that the band matches the grid.
func (l Layer) Validate() error {
	if err := l.Grid.Validate(); err != nil {
		return err
	}
	if len(l.Values) != l.Grid.Len() {
		return fmt.Errorf("layer has %d values, grid expects %d", len(l.Values), l.Grid.Len())
	}
	return nil
}

// At samples the layer at a lon/lat point. ok is false outside the grid.
func (l Layer) At(p orb.Point) (float64, bool) {
	col, row, ok := l.Grid.Locate(p)
	if !ok {
		return math.NaN(), false
	}
	return l.Values[l.Grid.Index(col, row)], true
}

// Resample projects the layer onto dst by nearest neighbour. Pixels of dst
// outside the layer are NaN.
func (l Layer) Resample(dst Grid) Band {
	out := make(Band, dst.Len())
	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			v, _ := l.At(dst.Center(col, row))
			out[dst.Index(col, row)] = v
		}
	}
	return out
}
