package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Projector maps look angles onto the flat sky disc drawn by the overlay.
// The zenith is the origin, the horizon a circle of the given radius.
type Projector struct {
	Radius        float64 // scene radius in display units
	AzimuthOffset float64 // radians subtracted from every azimuth
}

// NewProjector builds a Projector from a scene radius and an azimuth offset in degrees.
func NewProjector(radius, azimuthOffsetDeg float64) Projector {
	return Projector{Radius: radius, AzimuthOffset: mgl64.DegToRad(azimuthOffsetDeg)}
}

// Project returns the display-plane position for the given look angles:
//
//	x = R·sin(az)·cos(el)
//	y = R·cos(az)·cos(el)
func (p Projector) Project(la LookAngles) mgl32.Vec2 {
	az := la.Azimuth - p.AzimuthOffset
	cosEl := math.Cos(la.Elevation)
	return mgl32.Vec2{
		float32(p.Radius * math.Sin(az) * cosEl),
		float32(p.Radius * math.Cos(az) * cosEl),
	}
}
