package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

// MaxHorizonDays is the longest forecast the precipitation source carries.
const MaxHorizonDays = 16

// Params are the calibrated constants of the water balance model.
type Params struct {
	K     float64 // antecedent precipitation decay
	Gmax  float64 // maximum infiltration capacity, mm
	L     float64 // loss per unit wetted area, m/day
	Kr    float64 // runoff coefficient
	N     float64 // catchment to pond area ratio
	Alpha float64 // volume–area exponent
	H0    float64 // reference height, m

	HorizonDays    int
	AntecedentDays int
	ElevationBand  float64 // m above the terrain minimum counted in So
	StepOffset     time.Duration
}

// DefaultParams returns the calibrated values.
func DefaultParams() Params {
	return Params{
		K:              0.45,
		Gmax:           15,
		L:              0.1,
		Kr:             0.9,
		N:              10,
		Alpha:          0.9,
		H0:             1,
		HorizonDays:    15,
		AntecedentDays: 7,
		ElevationBand:  3,
		StepOffset:     6 * time.Hour,
	}
}

// Validate rejects parameters the model cannot run with.
func (p Params) Validate() error {
	var errs []error
	if p.K <= 0 || p.K >= 1 {
		errs = append(errs, fmt.Errorf("k %g outside (0,1)", p.K))
	}
	if p.Gmax < 0 {
		errs = append(errs, fmt.Errorf("gmax %g must not be negative", p.Gmax))
	}
	if p.L < 0 {
		errs = append(errs, fmt.Errorf("l %g must not be negative", p.L))
	}
	if p.Kr < 0 || p.Kr > 1 {
		errs = append(errs, fmt.Errorf("kr %g outside [0,1]", p.Kr))
	}
	if p.N <= 0 {
		errs = append(errs, fmt.Errorf("n %g must be positive", p.N))
	}
	if p.Alpha <= 0 {
		errs = append(errs, fmt.Errorf("alpha %g must be positive", p.Alpha))
	}
	if p.H0 <= 0 {
		errs = append(errs, fmt.Errorf("h0 %g must be positive", p.H0))
	}
	if p.HorizonDays < 1 || p.HorizonDays > MaxHorizonDays {
		errs = append(errs, fmt.Errorf("horizon %d days outside [1,%d]", p.HorizonDays, MaxHorizonDays))
	}
	if p.AntecedentDays < 1 {
		errs = append(errs, fmt.Errorf("antecedent window %d days must be positive", p.AntecedentDays))
	}
	if p.ElevationBand < 0 {
		errs = append(errs, fmt.Errorf("elevation band %g must not be negative", p.ElevationBand))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.Configuration("forecast parameters: %v", err)
	}
	return nil
}
