package orbit

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/make-42/tasogare/internal/transform"
)

// Propagator returns the TEME state of one satellite at an offset in minutes
// from its element epoch. Implementations are read-only after construction
// and safe for concurrent use.
type Propagator interface {
	Propagate(minutes float64) (transform.PositionTEME, error)
}

// Backend selects the SGP4 implementation.
type Backend string

const (
	BackendSGP4   Backend = "sgp4"
	BackendNative Backend = "native"
)

// ParseBackend maps a configuration value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSGP4, BackendNative:
		return b, nil
	default:
		return "", errors.Errorf("unknown propagator backend %q (want %q or %q)", s, BackendSGP4, BackendNative)
	}
}

// New builds a propagator for el using the given backend.
func New(el Elements, backend Backend) (Propagator, error) {
	switch backend {
	case BackendSGP4, "":
		return NewSGP4(el)
	case BackendNative:
		return NewNative(el)
	default:
		return nil, errors.Errorf("unknown propagator backend %q", backend)
	}
}

// PropagationError reports a failed propagation for one satellite at one offset.
type PropagationError struct {
	NORADID int
	Minutes float64
	Err     error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed for NORAD %d at %+.1f min: %v", e.NORADID, e.Minutes, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// ErrImplausiblePosition marks output that is finite but not an Earth orbit.
var ErrImplausiblePosition = errors.New("implausible position")

// checkPosition rejects NaN/Inf output and magnitudes outside ~6200 to
// ~50000 km (below the surface or beyond GEO graveyard).
func checkPosition(pos transform.PositionTEME) error {
	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrImplausiblePosition, "output is NaN/Inf")
		}
	}
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return errors.Wrapf(ErrImplausiblePosition, "magnitude %.1f km", mag)
	}
	return nil
}
