// Package index computes the spectral water indices used by the classifier
// and the fixed thresholds that turn each of them into a water vote.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// Index names.
const (
	MNDWI   = "mndwi"
	NDMI    = "ndmi"
	AWEINSH = "awei_nsh"
	AWEISH  = "awei_sh"
	WRI     = "wri"
	TCW     = "tcw"
	SWIR1   = "swir1"
	SWIR2   = "swir2"
)

// Reflectance holds the six canonical bands of one pixel.
type Reflectance struct {
	Blue, Green, Red, NIR, SWIR1, SWIR2 float64
}

// Formula evaluates an index for one pixel. NaN means no evidence.
type Formula func(Reflectance) float64

// Tasseled-cap wetness coefficients, blue through swir2.
var tcwCoefficients = [6]float64{0.1511, 0.1973, 0.3283, 0.3407, -0.7117, -0.4559}

var formulas = map[string]Formula{
	MNDWI: func(r Reflectance) float64 { return NormalizedDifference(r.Green, r.SWIR1) },
	NDMI:  func(r Reflectance) float64 { return NormalizedDifference(r.NIR, r.SWIR1) },
	AWEINSH: func(r Reflectance) float64 {
		return 4*(r.Green-r.SWIR1) - (0.25*r.NIR + 2.75*r.SWIR2)
	},
	AWEISH: func(r Reflectance) float64 {
		return r.Blue + 2.5*r.Green - 1.5*(r.NIR+r.SWIR1) - 0.25*r.SWIR2
	},
	WRI: func(r Reflectance) float64 { return ratio(r.Green+r.Red, r.NIR+r.SWIR1) },
	TCW: func(r Reflectance) float64 {
		c := tcwCoefficients
		return c[0]*r.Blue + c[1]*r.Green + c[2]*r.Red + c[3]*r.NIR + c[4]*r.SWIR1 + c[5]*r.SWIR2
	},
	SWIR1: func(r Reflectance) float64 { return r.SWIR1 },
	SWIR2: func(r Reflectance) float64 { return r.SWIR2 },
}

// NormalizedDifference returns (a-b)/(a+b), or NaN when a+b is zero.
func NormalizedDifference(a, b float64) float64 {
	return ratio(a-b, a+b)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// Lookup returns the formula registered under name.
func Lookup(name string) (Formula, bool) {
	f, ok := formulas[name]
	return f, ok
}

// Names lists every known index in lexical order.
func Names() []string {
	names := make([]string, 0, len(formulas))
	for n := range formulas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compute evaluates the named index over every pixel of a harmonized scene.
// The scene mask is not applied here.
func Compute(s *raster.Scene, name string) (raster.Band, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown index %q", name)
	}
	bands := make([]raster.Band, len(raster.CanonicalBands))
	for i, b := range raster.CanonicalBands {
		band, err := s.Band(b)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", name, err)
		}
		bands[i] = band
	}
	out := make(raster.Band, s.Grid.Len())
	for i := range out {
		out[i] = f(Reflectance{
			Blue:  bands[0][i],
			Green: bands[1][i],
			Red:   bands[2][i],
			NIR:   bands[3][i],
			SWIR1: bands[4][i],
			SWIR2: bands[5][i],
		})
	}
	return out, nil
}
