package forecast

import (
	"math"
	"time"
)

// mmToM converts precipitation depth to metres for volume terms.
const mmToM = 0.001

// Basin holds the per-pond constants fixed at initialization.
type Basin struct {
	FeatureArea   float64 // m²
	CatchmentArea float64 // Ac, m²
	So            float64 // storage normalisation area, m²
	Vo            float64 // reference volume, m³
}

// State is one simulated day. Precip and Iap are in mm, Volume in m³,
// Height in m and Area in m².
type State struct {
	Time   time.Time `json:"time"`
	Precip float64   `json:"precip"`
	Iap    float64   `json:"iap"`
	Volume float64   `json:"volume"`
	Height float64   `json:"height"`
	Area   float64   `json:"area"`
}

// DayForcing is the precipitation of one forecast day, in mm.
type DayForcing struct {
	Time   time.Time
	Precip float64
}

// NewBasin derives the pond constants from its area and So.
func NewBasin(p Params, featureArea, so float64) Basin {
	return Basin{
		FeatureArea:   featureArea,
		CatchmentArea: p.N * featureArea,
		So:            so,
		Vo:            so * p.H0 / (p.Alpha + 1),
	}
}

// InitialState places the pond on the volume–area curve at the given water
// fraction, so that the first transition starts from a consistent state.
func InitialState(p Params, b Basin, fraction float64, at time.Time, prevPrecip, iap float64) State {
	area := b.FeatureArea * fraction
	height := p.H0 * math.Pow(area/b.So, 1/p.Alpha)
	return State{
		Time:   at.Add(-p.StepOffset),
		Precip: prevPrecip,
		Iap:    iap,
		Volume: b.Vo * math.Pow(height/p.H0, p.Alpha+1),
		Height: height,
		Area:   area,
	}
}

// Step advances prev by one day of forcing.
func Step(p Params, b Basin, prev State, f DayForcing) State {
	iap := (prev.Iap + prev.Precip) * p.K
	g := math.Max(p.Gmax-iap, 0)
	pe := math.Max(f.Precip-g, 0)
	qin := p.Kr * pe * mmToM * b.CatchmentArea
	dv := f.Precip*mmToM*b.FeatureArea + qin - p.L*prev.Area
	volume := math.Max(prev.Volume+dv, 0)

	height := math.Max(p.H0*math.Pow(volume/b.Vo, 1/(p.Alpha+1)), 0)
	area := math.Max(b.So*math.Pow(height/p.H0, p.Alpha), 0)
	return State{
		Time:   f.Time.Add(p.StepOffset),
		Precip: f.Precip,
		Iap:    iap,
		Volume: volume,
		Height: height,
		Area:   area,
	}
}

// Simulate folds Step over the forcing in order, returning the initial
// state followed by one state per day.
func Simulate(p Params, b Basin, initial State, forcing []DayForcing) []State {
	out := make([]State, 0, len(forcing)+1)
	out = append(out, initial)
	prev := initial
	for _, f := range forcing {
		prev = Step(p, b, prev, f)
		out = append(out, prev)
	}
	return out
}

// PctArea is min(area/featureArea, 1), clamped at zero.
func PctArea(area, featureArea float64) float64 {
	return math.Max(0, math.Min(area/featureArea, 1))
}
