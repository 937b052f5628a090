package mask

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SunPosition is the apparent solar position seen from a point on the ground.
type SunPosition struct {
	AzimuthDeg   float64 // clockwise from north
	ElevationDeg float64
}

// ZenithDeg is 90 minus elevation.
func (p SunPosition) ZenithDeg() float64 { return 90 - p.ElevationDeg }

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

func clampUnit(v float64) float64 { return math.Max(-1, math.Min(1, v)) }

// SolarPosition follows the NOAA low-precision algorithm. It is used when a
// scene arrives without sun angle metadata. The refraction correction is
// omitted since only shadow geometry depends on it.
func SolarPosition(t time.Time, lon, lat float64) SunPosition {
	t = t.UTC()
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	decl := math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	ha := (utcMin+4*lon+eqTimeMin)/4 - 180
	if ha < -180 {
		ha += 360
	}

	latRad := degToRad(lat)
	cosZen := clampUnit(math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(degToRad(ha)))
	zen := math.Acos(cosZen)

	var az float64
	if den := math.Cos(latRad) * math.Sin(zen); den != 0 {
		az = radToDeg(math.Acos(clampUnit((math.Sin(decl) - math.Sin(latRad)*cosZen) / den)))
		if ha > 0 {
			az = 360 - az
		}
	}
	return SunPosition{AzimuthDeg: fixAngle(az), ElevationDeg: 90 - radToDeg(zen)}
}
