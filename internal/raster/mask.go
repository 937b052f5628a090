package raster

import "math"

// Mask is a per-pixel boolean raster. As a validity mask, true means the
// pixel is clear and usable; as a detection raster (clouds, shadows, dark
// outliers) true means the condition holds.
type Mask []bool

// NewMask returns a mask of n pixels filled with v.
func NewMask(n int, v bool) Mask {
	m := make(Mask, n)
	if v {
		for i := range m {
			m[i] = true
		}
	}
	return m
}

// And returns m AND other. A nil mask is all-true.
func (m Mask) And(other Mask) Mask {
	if m == nil {
		return other.Clone()
	}
	out := m.Clone()
	if other == nil {
		return out
	}
	for i := range out {
		out[i] = out[i] && other[i]
	}
	return out
}

// Or returns m OR other.
func (m Mask) Or(other Mask) Mask {
	out := m.Clone()
	for i := range out {
		out[i] = out[i] || other[i]
	}
	return out
}

// Not returns the complement of m.
func (m Mask) Not() Mask {
	out := make(Mask, len(m))
	for i, v := range m {
		out[i] = !v
	}
	return out
}

// Clone copies m.
func (m Mask) Clone() Mask {
	if m == nil {
		return nil
	}
	out := make(Mask, len(m))
	copy(out, m)
	return out
}

// Count returns the number of true pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Threshold returns the pixels where pred holds. NaN never satisfies pred.
func Threshold(b Band, pred func(float64) bool) Mask {
	out := make(Mask, len(b))
	for i, v := range b {
		out[i] = !math.IsNaN(v) && pred(v)
	}
	return out
}

// Erode clears every true pixel that has a false pixel within a circular
// kernel of the given radius (focal minimum). Pixels outside the grid do
// not count as false.
func Erode(m Mask, g Grid, radius int) Mask {
	return focal(m, g, radius, false)
}

// Dilate sets every pixel that has a true pixel within a circular kernel
// of the given radius (focal maximum).
func Dilate(m Mask, g Grid, radius int) Mask {
	return focal(m, g, radius, true)
}

func focal(m Mask, g Grid, radius int, target bool) Mask {
	out := m.Clone()
	if radius <= 0 {
		return out
	}
	offsets := circleOffsets(radius)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			i := g.Index(col, row)
			if m[i] == target {
				continue
			}
			for _, o := range offsets {
				c, r := col+o[0], row+o[1]
				if g.InBounds(c, r) && m[g.Index(c, r)] == target {
					out[i] = target
					break
				}
			}
		}
	}
	return out
}

func circleOffsets(radius int) [][2]int {
	var offsets [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if (dx != 0 || dy != 0) && dx*dx+dy*dy <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// Project marks every pixel reachable from a true pixel of m by walking up
// to maxPixels steps towards azimuth (degrees clockwise from north). The
// source pixels themselves are not marked unless reached from another.
func Project(m Mask, g Grid, azimuth float64, maxPixels int) Mask {
	out := make(Mask, len(m))
	if maxPixels <= 0 {
		return out
	}
	rad := azimuth * math.Pi / 180
	// Rows grow southwards, so north is -row.
	dc, dr := math.Sin(rad), -math.Cos(rad)
	for i, v := range m {
		if !v {
			continue
		}
		col, row := g.ColRow(i)
		for s := 1; s <= maxPixels; s++ {
			c := col + int(math.Round(float64(s)*dc))
			r := row + int(math.Round(float64(s)*dr))
			if !g.InBounds(c, r) {
				break
			}
			out[g.Index(c, r)] = true
		}
	}
	return out
}
