package orbit

import (
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"

	"github.com/make-42/tasogare/internal/transform"
)

// SGP4 wraps github.com/joshuaferrara/go-satellite for a single satellite.
//
// go-satellite's Propagate takes the Satellite by value and hides its error
// codes, so failures are detected from the output (see checkPosition). It
// also takes calendar fields with whole seconds; offsets are rounded to the
// nearest second.
type SGP4 struct {
	sat satellite.Satellite
	el  Elements
}

// NewSGP4 initializes the WGS-84 SGP4 model for el.
//
// TLE format is validated first because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4(el Elements) (*SGP4, error) {
	if err := validateTLELines(el.Line1, el.Line2); err != nil {
		return nil, errors.Wrapf(err, "invalid TLE for NORAD %d", el.NORADID)
	}

	sat := satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, errors.Errorf("sgp4 init failed for NORAD %d: code=%d %s", el.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4{sat: sat, el: el}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate returns position and velocity in TEME (km, km/s).
func (p *SGP4) Propagate(minutes float64) (transform.PositionTEME, error) {
	t := p.el.At(minutes).UTC().Round(time.Second)
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	out := transform.PositionTEME{
		X:  pos.X,
		Y:  pos.Y,
		Z:  pos.Z,
		VX: vel.X,
		VY: vel.Y,
		VZ: vel.Z,
	}
	if err := checkPosition(out); err != nil {
		return transform.PositionTEME{}, &PropagationError{NORADID: p.el.NORADID, Minutes: minutes, Err: err}
	}
	return out, nil
}
