package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer holds a ground observer's location in both geodetic and ECEF frames.
// ECEF coordinates are precomputed once and reused for every sample.
type Observer struct {
	LatRad, LonRad, AltM float64 // geodetic (radians, meters above ellipsoid)
	ECEF                 mgl64.Vec3
}

// LookAngles holds azimuth, elevation and range from observer to satellite.
type LookAngles struct {
	Azimuth   float64 // radians, 0 = North, clockwise, [0, 2π)
	Elevation float64 // radians, 0 = horizon, π/2 = zenith
	Range     float64 // meters
}

// AzimuthDeg returns the azimuth in degrees.
func (la LookAngles) AzimuthDeg() float64 { return mgl64.RadToDeg(la.Azimuth) }

// ElevationDeg returns the elevation in degrees.
func (la LookAngles) ElevationDeg() float64 { return mgl64.RadToDeg(la.Elevation) }

// Above reports whether the target is strictly above the horizon.
func (la LookAngles) Above() bool { return la.Elevation > 0 }

// NewObserver creates an Observer from geodetic coordinates.
// Latitude and longitude are in degrees, altitude in meters above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat := mgl64.DegToRad(latDeg)
	lon := mgl64.DegToRad(lonDeg)

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEF: mgl64.Vec3{
			(n + altM) * cosLat * math.Cos(lon),
			(n + altM) * cosLat * math.Sin(lon),
			(n*(1-wgs84E2) + altM) * sinLat,
		},
	}
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, altitude in meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// ECEFToGeodetic converts ECEF coordinates (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: mgl64.RadToDeg(lat),
		LonDeg: mgl64.RadToDeg(lon),
		AltM:   alt,
	}
}

// ECEFToLookAngles computes azimuth, elevation and range from an observer
// to a target given in ECEF meters, via the SEZ (South-East-Zenith) frame
// (Vallado 4.4).
func ECEFToLookAngles(obs Observer, sat mgl64.Vec3) LookAngles {
	rho := sat.Sub(obs.ECEF)

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	south := sinLat*cosLon*rho.X() + sinLat*sinLon*rho.Y() - cosLat*rho.Z()
	east := -sinLon*rho.X() + cosLon*rho.Y()
	zenith := cosLat*cosLon*rho.X() + cosLat*sinLon*rho.Y() + sinLat*rho.Z()

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{Elevation: math.Pi / 2}
	}

	// North is −South in SEZ.
	return LookAngles{
		Azimuth:   wrapTwoPi(math.Atan2(east, -south)),
		Elevation: math.Asin(zenith / rng),
		Range:     rng,
	}
}

// ECIToLookAngles is the geodetic-to-topocentric transform for an inertial
// position (meters): rotate by the sidereal angle into ECEF, then take the
// WGS-84 look angles from the observer.
func ECIToLookAngles(gst float64, eci mgl64.Vec3, obs Observer) LookAngles {
	return ECEFToLookAngles(obs, ECIToECEF(eci, gst))
}
