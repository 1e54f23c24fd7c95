package sky

import (
	"time"

	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/transform"
)

// orbitLocator places one satellite in the observer's sky: sidereal angle,
// propagate, TEME to inertial, then look angles.
type orbitLocator struct {
	el   orbit.Elements
	prop orbit.Propagator
	obs  transform.Observer
}

func (l orbitLocator) Locate(t time.Time) (transform.LookAngles, error) {
	gst := transform.SiderealAngle(t)
	teme, err := l.prop.Propagate(l.el.MinutesSinceEpoch(t))
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.ECIToLookAngles(gst, transform.TEMEToGCRF(teme, t), l.obs), nil
}
