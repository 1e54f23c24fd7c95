package transform

import (
	"math"
	"time"
)

const (
	// j2000 is the Julian Date of the J2000.0 epoch (2000-01-01 12:00 TT).
	j2000 = 2451545.0

	julianCentury = 36525.0
	secondsPerDay = 86400.0
	twoPi         = 2 * math.Pi
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a UTC instant to a Julian Date using the civil calendar
// formula. January and February count as months 13 and 14 of the previous
// year so the leap day lands at the end of the computational year.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m < 3 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFrac
}

// CenturiesSinceJ2000 returns Julian centuries elapsed since J2000.0 for a Julian Date.
func CenturiesSinceJ2000(jd float64) float64 {
	return (jd - j2000) / julianCentury
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π).
//
// IAU-82 model (Vallado eq. 3-47), in seconds of time:
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³
func GMST(t time.Time) float64 {
	tUT1 := CenturiesSinceJ2000(JulianDate(t))

	// 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	return wrapTwoPi(sec / secondsPerDay * twoPi)
}

// SiderealAngle is the Greenwich sidereal angle used by every sky transform.
func SiderealAngle(t time.Time) float64 {
	return GMST(t)
}

// wrapTwoPi reduces an angle into [0, 2π) with a non-negative remainder.
func wrapTwoPi(rad float64) float64 {
	r := math.Mod(rad, twoPi)
	if r < 0 {
		r += twoPi
	}
	// Mod of a tiny negative value can round up to exactly 2π.
	if r >= twoPi {
		r = 0
	}
	return r
}
