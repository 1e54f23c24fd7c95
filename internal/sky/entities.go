package sky

import (
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/trail"
	"github.com/make-42/tasogare/internal/window"
)

// Entity kinds, used as metric and log labels.
const (
	kindSatellite = "satellite"
	kindTrail     = "trail"
)

// Marker is a satellite's display position at one instant. Visible is false
// when the satellite is below the horizon or outside its cached window.
type Marker struct {
	Name     string     `json:"name"`
	NORADID  int        `json:"norad_id"`
	Position mgl32.Vec2 `json:"position"`
	Visible  bool       `json:"visible"`
}

// Polyline is a trail sampled for drawing.
type Polyline struct {
	Name   string       `json:"name"`
	Color  mgl32.Vec4   `json:"color"`
	Points []mgl32.Vec2 `json:"points"`
}

// Satellite tracks the current position of one satellite.
type Satellite struct {
	Elements orbit.Elements
	cache    *window.Cache[window.Samples]
}

func newSatellite(el orbit.Elements, scanner window.Scanner) *Satellite {
	return &Satellite{
		Elements: el,
		cache:    window.NewCache(scanner, func(p window.Pass) window.Samples { return p.Samples }),
	}
}

// Marker interpolates the cached window at now.
func (s *Satellite) Marker(now time.Time) Marker {
	pos, ok := s.cache.Value().Interpolate(now)
	return Marker{
		Name:     s.Elements.Name,
		NORADID:  s.Elements.NORADID,
		Position: pos,
		Visible:  ok,
	}
}

// Trail is the fitted path of a satellite's upcoming or current pass.
type Trail struct {
	Elements   orbit.Elements
	Color      mgl32.Vec4
	Resolution int
	cache      *window.Cache[trail.Spline]
}

func newTrail(el orbit.Elements, scanner window.Scanner, st Settings) *Trail {
	tension := st.TrailTension
	return &Trail{
		Elements:   el,
		Color:      st.TrailColor,
		Resolution: st.TrailResolution,
		cache: window.NewCache(scanner, func(p window.Pass) trail.Spline {
			return trail.Spline{Tension: tension, Points: p.Samples.Positions()}
		}),
	}
}

// Polyline samples the fitted curve. It fails with trail.ErrInsufficientPoints
// when the cached window is too short to fit.
func (t *Trail) Polyline() (Polyline, error) {
	curve, err := t.cache.Value().Curve()
	if err != nil {
		return Polyline{}, err
	}
	return Polyline{
		Name:   t.Elements.Name,
		Color:  t.Color,
		Points: slices.Collect(curve.Positions(t.Resolution)),
	}, nil
}
