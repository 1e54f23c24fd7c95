// Package orbit turns two-line element sets into propagators that return
// TEME positions at a given offset from the element epoch.
package orbit

import (
	"fmt"
	"time"

	"github.com/akhenakh/sgp4"
	"github.com/pkg/errors"

	"github.com/make-42/tasogare/internal/tle"
)

// Elements is an immutable parsed element set.
type Elements struct {
	Name    string
	NORADID int
	Epoch   time.Time
	Line1   string
	Line2   string

	Inclination  float64 // degrees
	RAAN         float64 // degrees
	Eccentricity float64
	ArgPerigee   float64 // degrees
	MeanAnomaly  float64 // degrees
	MeanMotion   float64 // revolutions per day
	BStar        float64
}

// NewElements parses the Keplerian fields out of a TLE entry.
func NewElements(e tle.TLEEntry) (Elements, error) {
	parsed, err := sgp4.ParseTLE(e.Line1 + "\n" + e.Line2)
	if err != nil {
		return Elements{}, errors.Wrapf(err, "parsing elements for %s (NORAD %d)", e.Name, e.NORADID)
	}
	if parsed.MeanMotion <= 0 {
		return Elements{}, errors.Errorf("non-positive mean motion %v for NORAD %d", parsed.MeanMotion, e.NORADID)
	}

	return Elements{
		Name:         e.Name,
		NORADID:      e.NORADID,
		Epoch:        e.Epoch,
		Line1:        e.Line1,
		Line2:        e.Line2,
		Inclination:  parsed.Inclination,
		RAAN:         parsed.RightAscension,
		Eccentricity: parsed.Eccentricity,
		ArgPerigee:   parsed.ArgOfPerigee,
		MeanAnomaly:  parsed.MeanAnomaly,
		MeanMotion:   parsed.MeanMotion,
		BStar:        parsed.Bstar,
	}, nil
}

// MinutesSinceEpoch returns the propagation offset for t.
func (el Elements) MinutesSinceEpoch(t time.Time) float64 {
	return t.Sub(el.Epoch).Minutes()
}

// At returns the instant minutes after the epoch.
func (el Elements) At(minutes float64) time.Time {
	return el.Epoch.Add(time.Duration(minutes * float64(time.Minute)))
}

// Period returns the nominal orbital period.
func (el Elements) Period() time.Duration {
	return time.Duration(float64(24*time.Hour) / el.MeanMotion)
}

func (el Elements) String() string {
	return fmt.Sprintf("%s (NORAD %d)", el.Name, el.NORADID)
}
