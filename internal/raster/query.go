package raster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Query selects archive scenes of one sensor family by footprint and
// acquisition time (From inclusive, To exclusive).
type Query struct {
	Bound  orb.Bound
	From   time.Time
	To     time.Time
	Sensor Sensor
}

// Validate rejects empty windows and unknown sensors.
func (q Query) Validate() error {
	if !q.To.After(q.From) {
		return fmt.Errorf("query window %s..%s is empty", q.From.Format(time.DateOnly), q.To.Format(time.DateOnly))
	}
	if _, ok := nativeBands[q.Sensor]; !ok {
		return fmt.Errorf("unknown sensor %q", q.Sensor)
	}
	return nil
}
