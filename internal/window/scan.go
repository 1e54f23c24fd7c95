// Package window finds the next above-horizon window of a satellite by
// stepping its position forward in time, and caches the result until the
// window has been used up.
package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/make-42/tasogare/internal/transform"
)

// Locator returns the look angles of one target at t.
type Locator interface {
	Locate(t time.Time) (transform.LookAngles, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(t time.Time) (transform.LookAngles, error)

func (f LocatorFunc) Locate(t time.Time) (transform.LookAngles, error) { return f(t) }

// ScanConfig bounds a scan.
type ScanConfig struct {
	Step        time.Duration // sampling interval
	MaxLength   time.Duration // longest window kept after rise
	MaxForecast time.Duration // how far ahead of the start to look
}

// Validate rejects non-positive bounds.
func (c ScanConfig) Validate() error {
	var errs []error
	if c.Step <= 0 {
		errs = append(errs, fmt.Errorf("step must be positive, got %v", c.Step))
	}
	if c.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("max length must be positive, got %v", c.MaxLength))
	}
	if c.MaxForecast <= 0 {
		errs = append(errs, fmt.Errorf("max forecast must be positive, got %v", c.MaxForecast))
	}
	return errors.Join(errs...)
}

// Scanner runs scans for one target.
type Scanner struct {
	Locator   Locator
	Projector transform.Projector
	Config    ScanConfig
}

// Pass is the outcome of one scan.
type Pass struct {
	Samples Samples
	Rise    time.Time // first above-horizon sample; zero if none
	End     time.Time // instant the scan stopped; the next scan starts here
	Steps   int       // locate calls made
	Err     error     // propagation failure that cut the scan short
}

// Found reports whether the scan produced any above-horizon sample.
func (p Pass) Found() bool { return len(p.Samples) > 0 }

// Scan steps forward from start until the target has risen and set again,
// the window reaches MaxLength, or MaxForecast has elapsed. Only samples
// between rise and set are kept; the first below-horizon sample after rise
// is dropped.
//
// A locate error stops the scan with the samples collected so far. End is
// then never earlier than start+Step so the caller cannot spin on a failing
// instant.
func (s Scanner) Scan(start time.Time) Pass {
	cfg := s.Config
	var pass Pass
	var risen, set bool
	t, aos := start, start

	for t.Sub(start) < cfg.MaxForecast && t.Sub(aos) < cfg.MaxLength && !(risen && set) {
		la, err := s.Locator.Locate(t)
		pass.Steps++
		if err != nil {
			pass.Err = err
			pass.End = t
			if floor := start.Add(cfg.Step); pass.End.Before(floor) {
				pass.End = floor
			}
			return pass
		}

		if !risen {
			aos = t
		}
		if la.Elevation > 0 {
			risen = true
		}
		if risen && la.Elevation < 0 {
			set = true
		}
		if risen && !set {
			pass.Samples = append(pass.Samples, Sample{
				Time:     t,
				Position: s.Projector.Project(la),
				Look:     la,
			})
		}

		t = t.Add(cfg.Step)
	}

	if risen {
		pass.Rise = aos
	}
	pass.End = t
	return pass
}
