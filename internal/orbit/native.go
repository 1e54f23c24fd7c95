package orbit

import (
	"github.com/akhenakh/sgp4"
	"github.com/pkg/errors"

	"github.com/make-42/tasogare/internal/transform"
)

// Native propagates with github.com/akhenakh/sgp4, a pure-Go port of
// libsgp4 that takes the offset in minutes directly.
type Native struct {
	tle *sgp4.TLE
	el  Elements
}

// NewNative parses el and runs the SGP4 initialization once so that bad
// element sets fail here rather than on every step.
func NewNative(el Elements) (*Native, error) {
	t, err := sgp4.ParseTLE(el.Line1 + "\n" + el.Line2)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing TLE for NORAD %d", el.NORADID)
	}
	if _, err := t.Initialize(); err != nil {
		return nil, errors.Wrapf(err, "sgp4 init failed for NORAD %d", el.NORADID)
	}
	return &Native{tle: t, el: el}, nil
}

// Propagate returns position and velocity in TEME (km, km/s).
func (p *Native) Propagate(minutes float64) (transform.PositionTEME, error) {
	eci, err := p.tle.FindPosition(minutes)
	if err != nil {
		return transform.PositionTEME{}, &PropagationError{NORADID: p.el.NORADID, Minutes: minutes, Err: err}
	}

	out := transform.PositionTEME{
		X:  eci.Position.X,
		Y:  eci.Position.Y,
		Z:  eci.Position.Z,
		VX: eci.Velocity.X,
		VY: eci.Velocity.Y,
		VZ: eci.Velocity.Z,
	}
	if err := checkPosition(out); err != nil {
		return transform.PositionTEME{}, &PropagationError{NORADID: p.el.NORADID, Minutes: minutes, Err: err}
	}
	return out, nil
}
