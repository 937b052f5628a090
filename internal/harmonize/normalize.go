package harmonize

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// errCalibration marks a scene that cannot be converted to reflectance.
var errCalibration = errors.New("missing radiometric calibration")

// Sentinel-2 digital numbers are reflectance scaled by this factor.
const sentinel2Quantification = 10000

func alreadyReflectance(s *raster.Scene) bool {
	v, ok := s.Property(raster.PropReflectance)
	return ok && v == 1
}

// bandNumber extracts 5 from "B5".
func bandNumber(id string) string { return strings.TrimPrefix(id, "B") }

// normalize converts archive digital numbers into top-of-atmosphere
// reflectance. Scenes delivered as reflectance pass through.
func normalize(s *raster.Scene) (*raster.Scene, error) {
	if alreadyReflectance(s) {
		return s, nil
	}
	switch s.Sensor {
	case raster.SensorLandsat8:
		return landsatTOA(s)
	case raster.SensorSentinel2:
		return sentinel2TOA(s), nil
	default:
		return nil, fmt.Errorf("scene %s: unsupported sensor %q", s.ID, s.Sensor)
	}
}

// landsatTOA applies (M·Q + A) / sin(sunElevation) per reflective band and
// converts the thermal band to brightness temperature when calibration
// constants are present. Without them the thermal band is dropped and the
// cloud score runs without it.
func landsatTOA(s *raster.Scene) (*raster.Scene, error) {
	elev, ok := s.Property(raster.PropSunElevation)
	if !ok || elev <= 0 {
		return nil, fmt.Errorf("scene %s: sun elevation: %w", s.ID, errCalibration)
	}
	sinElev := math.Sin(elev * math.Pi / 180)

	out := s.Clone()
	for _, canonical := range raster.CanonicalBands {
		id, _ := raster.NativeBand(s.Sensor, canonical)
		dn, err := s.Band(id)
		if err != nil {
			return nil, err
		}
		n := bandNumber(id)
		mult, okM := s.Property("REFLECTANCE_MULT_BAND_" + n)
		add, okA := s.Property("REFLECTANCE_ADD_BAND_" + n)
		if !okM || !okA {
			return nil, fmt.Errorf("scene %s: band %s: %w", s.ID, id, errCalibration)
		}
		toa := make(raster.Band, len(dn))
		for i, q := range dn {
			toa[i] = (mult*q + add) / sinElev
		}
		out.Bands[id] = toa
	}

	thermalID, _ := raster.NativeBand(s.Sensor, raster.Thermal)
	if dn, ok := s.Bands[thermalID]; ok {
		if bt, ok := brightnessTemperature(s, thermalID, dn); ok {
			out.Bands[thermalID] = bt
		} else {
			delete(out.Bands, thermalID)
		}
	}
	out.Properties[raster.PropReflectance] = 1
	return out, nil
}

func brightnessTemperature(s *raster.Scene, id string, dn raster.Band) (raster.Band, bool) {
	n := bandNumber(id)
	mult, ok1 := s.Property("RADIANCE_MULT_BAND_" + n)
	add, ok2 := s.Property("RADIANCE_ADD_BAND_" + n)
	k1, ok3 := s.Property("K1_CONSTANT_BAND_" + n)
	k2, ok4 := s.Property("K2_CONSTANT_BAND_" + n)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}
	bt := make(raster.Band, len(dn))
	for i, q := range dn {
		radiance := mult*q + add
		if radiance <= 0 {
			bt[i] = math.NaN()
			continue
		}
		bt[i] = k2 / math.Log(k1/radiance+1)
	}
	return bt, true
}

func sentinel2TOA(s *raster.Scene) *raster.Scene {
	out := s.Clone()
	for _, canonical := range raster.CanonicalBands {
		id, _ := raster.NativeBand(s.Sensor, canonical)
		dn, ok := s.Bands[id]
		if !ok {
			continue
		}
		toa := make(raster.Band, len(dn))
		for i, q := range dn {
			toa[i] = q / sentinel2Quantification
		}
		out.Bands[id] = toa
	}
	out.Properties[raster.PropReflectance] = 1
	return out
}

// Bandpass is a per-band linear correction, applied as gain·v + bias.
type Bandpass struct {
	Gain map[string]float64
	Bias map[string]float64
}

// Sentinel2Bandpass brings Sentinel-2 reflectance onto the Landsat 8 scale.
func Sentinel2Bandpass() Bandpass {
	return Bandpass{
		Gain: map[string]float64{
			raster.Blue: 0.977, raster.Green: 1.005, raster.Red: 0.982,
			raster.NIR: 1.001, raster.SWIR1: 1.001, raster.SWIR2: 0.996,
		},
		Bias: map[string]float64{
			raster.Blue: -0.00411, raster.Green: -0.00093, raster.Red: 0.00094,
			raster.NIR: -0.00029, raster.SWIR1: -0.00015, raster.SWIR2: -0.00097,
		},
	}
}

// Validate requires a gain and bias for every canonical band.
func (bp Bandpass) Validate() error {
	for _, b := range raster.CanonicalBands {
		if _, ok := bp.Gain[b]; !ok {
			return fmt.Errorf("bandpass: missing gain for %s", b)
		}
		if _, ok := bp.Bias[b]; !ok {
			return fmt.Errorf("bandpass: missing bias for %s", b)
		}
	}
	return nil
}

// Apply corrects the canonical bands of a renamed scene.
func (bp Bandpass) Apply(s *raster.Scene) *raster.Scene {
	out := s.Clone()
	for _, name := range raster.CanonicalBands {
		b, ok := s.Bands[name]
		if !ok {
			continue
		}
		gain, bias := bp.Gain[name], bp.Bias[name]
		corrected := make(raster.Band, len(b))
		for i, v := range b {
			corrected[i] = gain*v + bias
		}
		out.Bands[name] = corrected
	}
	return out
}

// rename selects the six reflectance bands and gives them canonical names.
func rename(s *raster.Scene) (*raster.Scene, error) {
	mapping := make(map[string]string, len(raster.CanonicalBands))
	for _, canonical := range raster.CanonicalBands {
		id, _ := raster.NativeBand(s.Sensor, canonical)
		mapping[id] = canonical
	}
	return s.Select(mapping)
}
