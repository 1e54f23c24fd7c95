package transform

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soniakeys/meeus/v3/nutation"
)

const arcsecToRad = math.Pi / (180.0 * 3600.0)

// TEMEToGCRFMatrix returns the rotation taking a TEME vector into the
// GCRF-like inertial frame at time t:
//
//	r_GCRF = P · N · R3(−Eq_eq) · r_TEME
//
// Nutation uses the IAU-1980 series, precession the IAU-1976 angles. UT is
// used in place of TT; the ~70 s difference is far below display precision.
func TEMEToGCRFMatrix(t time.Time) mgl64.Mat3 {
	jd := JulianDate(t)
	T := CenturiesSinceJ2000(jd)

	dPsi, dEps := nutation.Nutation(jd)
	meanEps := nutation.MeanObliquity(jd).Rad()
	trueEps := meanEps + dEps.Rad()

	eqEq := dPsi.Rad() * math.Cos(meanEps)

	// TEME → TOD: R3(−Eq_eq).
	tod := rot3(-eqEq)

	// TOD → MOD: R1(−ε̄) · R3(Δψ) · R1(ε).
	nut := rot1(-meanEps).Mul3(rot3(dPsi.Rad())).Mul3(rot1(trueEps))

	// MOD → GCRF: R3(ζ) · R2(−θ) · R3(z).
	zeta := (2306.2181*T + 0.30188*T*T + 0.017998*T*T*T) * arcsecToRad
	theta := (2004.3109*T - 0.42665*T*T - 0.041833*T*T*T) * arcsecToRad
	z := (2306.2181*T + 1.09468*T*T + 0.018203*T*T*T) * arcsecToRad
	prec := rot3(zeta).Mul3(rot2(-theta)).Mul3(rot3(z))

	return prec.Mul3(nut).Mul3(tod)
}

// TEMEToGCRF rotates a TEME position (km) into the inertial frame expected by
// ECIToLookAngles. The result is in meters.
func TEMEToGCRF(teme PositionTEME, t time.Time) mgl64.Vec3 {
	return TEMEToGCRFMatrix(t).Mul3x1(teme.Vec())
}

// rot1, rot2 and rot3 are Vallado's frame rotations about X, Y and Z. A frame
// rotation by α is the active rotation by −α.
func rot1(a float64) mgl64.Mat3 { return mgl64.Rotate3DX(-a) }
func rot2(a float64) mgl64.Mat3 { return mgl64.Rotate3DY(-a) }
func rot3(a float64) mgl64.Mat3 { return mgl64.Rotate3DZ(-a) }
