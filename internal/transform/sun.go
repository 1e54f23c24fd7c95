package transform

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"
)

// astronomicalUnit in meters.
const astronomicalUnit = 1.495978707e11

// SunLookAngles returns the Sun's apparent direction as seen by obs at t.
// Range is fixed at one astronomical unit.
func SunLookAngles(t time.Time, obs Observer) LookAngles {
	ra, dec := solar.ApparentEquatorial(julian.TimeToJD(t.UTC()))
	dir := mgl64.Vec3{
		dec.Cos() * ra.Cos(),
		dec.Cos() * ra.Sin(),
		dec.Sin(),
	}
	return ECIToLookAngles(SiderealAngle(t), dir.Mul(astronomicalUnit), obs)
}
