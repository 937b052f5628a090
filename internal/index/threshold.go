package index

import (
	"fmt"
	"math"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// Direction is the comparison a test applies to its index.
type Direction int

const (
	// Greater votes water when value > threshold.
	Greater Direction = iota
	// Less votes water when value < threshold.
	Less
)

func (d Direction) String() string {
	if d == Less {
		return "<"
	}
	return ">"
}

// Test is one index compared against a fixed threshold.
type Test struct {
	Index     string
	Threshold float64
	Direction Direction
}

func (t Test) String() string {
	return fmt.Sprintf("%s %s %g", t.Index, t.Direction, t.Threshold)
}

// Water reports whether v votes water. Comparisons are strict and NaN never
// votes water.
func (t Test) Water(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if t.Direction == Less {
		return v < t.Threshold
	}
	return v > t.Threshold
}

// Apply evaluates the test over a scene and returns a 0/1 band. Pixels that
// are masked or whose index is undefined are NaN.
func (t Test) Apply(s *raster.Scene) (raster.Band, error) {
	values, err := Compute(s, t.Index)
	if err != nil {
		return nil, err
	}
	out := make(raster.Band, len(values))
	for i, v := range values {
		switch {
		case !s.Valid(i) || math.IsNaN(v):
			out[i] = math.NaN()
		case t.Water(v):
			out[i] = 1
		default:
			out[i] = 0
		}
	}
	return out, nil
}

// Primary is the test whose vote is the per-pixel water flag.
var Primary = Test{Index: MNDWI, Threshold: -0.2, Direction: Greater}

// DefaultTests returns the configured battery, primary first.
func DefaultTests() []Test {
	return []Test{
		Primary,
		{Index: NDMI, Threshold: 0.3, Direction: Greater},
		{Index: AWEINSH, Threshold: 0, Direction: Greater},
		{Index: AWEISH, Threshold: 0, Direction: Greater},
		{Index: WRI, Threshold: 1, Direction: Greater},
		{Index: TCW, Threshold: -0.1304, Direction: Greater},
		{Index: SWIR1, Threshold: 0.09, Direction: Less},
		{Index: SWIR2, Threshold: 0.10, Direction: Less},
	}
}
