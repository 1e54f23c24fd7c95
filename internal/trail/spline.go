// Package trail fits a smooth curve through the projected samples of a
// window so a renderer can draw the satellite's path as a polyline.
package trail

import (
	"errors"
	"iter"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultTension gives Catmull-Rom tangents.
const DefaultTension = 0.5

// ErrInsufficientPoints is returned when a curve is requested through fewer
// than two control points.
var ErrInsufficientPoints = errors.New("trail: need at least two points to fit a curve")

// Spline is the control data of a cardinal spline.
type Spline struct {
	Tension float32
	Points  []mgl32.Vec2
}

// Curve is a fitted spline as a chain of cubic Bézier segments.
type Curve struct {
	segments [][4]mgl32.Vec2
}

// Curve fits the spline. Tangents are m_i = τ·(P[i+1] − P[i−1]) with the end
// points mirrored past either end (P[−1] = 2·P[0] − P[1]); each span becomes
// the Bézier segment (P[i], P[i]+m_i/3, P[i+1]−m_{i+1}/3, P[i+1]).
func (s Spline) Curve() (*Curve, error) {
	n := len(s.Points)
	if n < 2 {
		return nil, ErrInsufficientPoints
	}

	p := func(i int) mgl32.Vec2 {
		switch {
		case i < 0:
			return s.Points[0].Mul(2).Sub(s.Points[1])
		case i >= n:
			return s.Points[n-1].Mul(2).Sub(s.Points[n-2])
		}
		return s.Points[i]
	}
	tangent := func(i int) mgl32.Vec2 { return p(i + 1).Sub(p(i - 1)).Mul(s.Tension) }

	segs := make([][4]mgl32.Vec2, n-1)
	for i := range segs {
		segs[i] = [4]mgl32.Vec2{
			p(i),
			p(i).Add(tangent(i).Mul(1.0 / 3)),
			p(i + 1).Sub(tangent(i + 1).Mul(1.0 / 3)),
			p(i + 1),
		}
	}
	return &Curve{segments: segs}, nil
}

// Segments returns the number of Bézier segments.
func (c *Curve) Segments() int { return len(c.segments) }

// At evaluates the curve at u in [0, Segments()]; segment k spans [k, k+1].
func (c *Curve) At(u float32) mgl32.Vec2 {
	last := len(c.segments) - 1
	k := int(u)
	switch {
	case u <= 0:
		k, u = 0, 0
	case k > last:
		k, u = last, float32(last+1)
	}
	seg := c.segments[k]
	return mgl32.CubicBezierCurve2D(u-float32(k), seg[0], seg[1], seg[2], seg[3])
}

// Positions yields n points evenly spaced in parameter from the first to the
// last control point. The sequence can be ranged over more than once.
func (c *Curve) Positions(n int) iter.Seq[mgl32.Vec2] {
	return func(yield func(mgl32.Vec2) bool) {
		if n <= 0 {
			return
		}
		if n == 1 {
			yield(c.At(0))
			return
		}
		total := float32(len(c.segments))
		for i := 0; i < n; i++ {
			if !yield(c.At(total * float32(i) / float32(n-1))) {
				return
			}
		}
	}
}
