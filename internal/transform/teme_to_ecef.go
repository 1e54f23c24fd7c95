// Package transform provides the frame and time transforms that turn an SGP4
// state vector into a direction on the local sky.
//
// Pipeline for one sample:
//
//	TEME (km) ──TEMEToGCRF──▶ inertial (m) ──R3(GMST)──▶ ECEF (m) ──SEZ──▶ az/el
//
// The Earth-fixed step uses GMST only (no polar motion), which is well below
// one display pixel for a sky overlay.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// PositionTEME represents a satellite position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// Vec returns the TEME position in meters.
func (p PositionTEME) Vec() mgl64.Vec3 {
	return mgl64.Vec3{p.X * 1000.0, p.Y * 1000.0, p.Z * 1000.0}
}

// PositionECEF represents a satellite position and velocity in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// TEMEToECEF transforms a TEME position/velocity to ECEF at the given UTC time.
// Input: TEME in km and km/s. Output: ECEF in meters and m/s.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle.
//
//	r_ECEF = R3(θ) · r_TEME
//	v_ECEF = R3(θ) · v_TEME − ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	r := ECIToECEF(mgl64.Vec3{teme.X, teme.Y, teme.Z}, gmst)
	v := ECIToECEF(mgl64.Vec3{teme.VX, teme.VY, teme.VZ}, gmst)

	// ω × r_ECEF = [-ω·y, ω·x, 0]
	vx := v.X() + OmegaEarth*r.Y()
	vy := v.Y() - OmegaEarth*r.X()

	return PositionECEF{
		X:  r.X() * 1000.0,
		Y:  r.Y() * 1000.0,
		Z:  r.Z() * 1000.0,
		VX: vx * 1000.0,
		VY: vy * 1000.0,
		VZ: v.Z() * 1000.0,
	}
}

// ECIToECEF rotates an inertial vector into the Earth-fixed frame by the
// sidereal angle. Units are preserved.
func ECIToECEF(r mgl64.Vec3, gst float64) mgl64.Vec3 {
	// Frame rotation R3(θ) is the active rotation by −θ.
	return mgl64.Rotate3DZ(-gst).Mul3x1(r)
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite: finite, and between 6200 km and 50000 km from the
// geocenter.
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
