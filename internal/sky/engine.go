// Package sky keeps every tracked satellite's current window and turns it
// into per-tick display output: a marker per satellite and a polyline per
// trail.
package sky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/make-42/tasogare/internal/metrics"
	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/tle"
	"github.com/make-42/tasogare/internal/transform"
	"github.com/make-42/tasogare/internal/window"
)

// Frame is the display output of one tick.
type Frame struct {
	Time          time.Time  `json:"time"`
	SiderealAngle float64    `json:"sidereal_angle"`
	SunElevation  float64    `json:"sun_elevation_deg"`
	Markers       []Marker   `json:"markers"`
	Polylines     []Polyline `json:"polylines"`
}

// VisibleCount returns how many markers are visible.
func (f *Frame) VisibleCount() int {
	n := 0
	for _, m := range f.Markers {
		if m.Visible {
			n++
		}
	}
	return n
}

// Find returns the marker and, if one was drawn, the trail of the named satellite.
func (f *Frame) Find(name string) (Marker, *Polyline, bool) {
	for _, m := range f.Markers {
		if m.Name != name {
			continue
		}
		for i := range f.Polylines {
			if f.Polylines[i].Name == name {
				return m, &f.Polylines[i], true
			}
		}
		return m, nil, true
	}
	return Marker{}, nil, false
}

// target pairs a satellite with its trail. Both share one read-only
// propagator and are only touched by one worker per tick.
type target struct {
	sat   *Satellite
	trail *Trail
}

// tickResult is the output of one target for one tick.
type tickResult struct {
	index    int
	marker   Marker
	polyline *Polyline
}

// Engine owns all tracked entities.
type Engine struct {
	targets  []target
	settings Settings
	logger   *slog.Logger

	latest atomic.Pointer[Frame]
}

// NewEngine builds a satellite and a trail for every entry. Entries whose
// propagator cannot be built are logged and skipped; it is an error only if
// none remain.
func NewEngine(entries []tle.TLEEntry, st Settings, logger *slog.Logger) (*Engine, error) {
	if err := st.Scan.Validate(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	if st.Workers < 1 {
		st.Workers = 1
	}

	e := &Engine{settings: st, logger: logger}
	for _, entry := range entries {
		el, err := orbit.NewElements(entry)
		if err != nil {
			logger.Warn("skipping satellite", "name", entry.Name, "norad_id", entry.NORADID, "error", err)
			continue
		}
		prop, err := orbit.New(el, st.Backend)
		if err != nil {
			logger.Warn("skipping satellite", "name", entry.Name, "norad_id", entry.NORADID, "error", err)
			continue
		}
		e.add(el, prop)
	}

	metrics.SetSatellitesTracked(len(e.targets))
	if len(e.targets) == 0 {
		return nil, errors.New("no satellite could be tracked")
	}
	logger.Info("engine ready",
		"tracked", len(e.targets),
		"skipped", len(entries)-len(e.targets),
		"backend", st.Backend,
		"workers", st.Workers,
	)
	return e, nil
}

// NewScanner returns the window scanner for one satellite as seen by the
// observer in st.
func NewScanner(el orbit.Elements, prop orbit.Propagator, st Settings) window.Scanner {
	return window.Scanner{
		Locator:   orbitLocator{el: el, prop: prop, obs: st.Observer},
		Projector: st.Projector,
		Config:    st.Scan,
	}
}

func (e *Engine) add(el orbit.Elements, prop orbit.Propagator) {
	scanner := NewScanner(el, prop, e.settings)
	e.targets = append(e.targets, target{
		sat:   newSatellite(el, scanner),
		trail: newTrail(el, scanner, e.settings),
	})
}

// Tracked returns the number of satellites in the engine.
func (e *Engine) Tracked() int { return len(e.targets) }

// Latest returns the frame of the most recent tick, or nil before the first.
func (e *Engine) Latest() *Frame { return e.latest.Load() }

// Tick refreshes every stale window, queries every entity at now and
// publishes the resulting frame. Failures of single entities never abort
// the tick. A tick cut short by ctx returns its partial frame without
// publishing it.
func (e *Engine) Tick(ctx context.Context, now time.Time) *Frame {
	start := time.Now()

	jobs := make(chan int, e.settings.Workers*2)
	results := make(chan tickResult, e.settings.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < min(e.settings.Workers, len(e.targets)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result := e.step(idx, now)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range e.targets {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	markers := make([]*Marker, len(e.targets))
	polylines := make([]*Polyline, len(e.targets))
	for r := range results {
		markers[r.index] = &r.marker
		polylines[r.index] = r.polyline
	}

	frame := &Frame{
		Time:          now,
		SiderealAngle: transform.SiderealAngle(now),
		SunElevation:  transform.SunLookAngles(now, e.settings.Observer).ElevationDeg(),
		Markers:       make([]Marker, 0, len(e.targets)),
		Polylines:     make([]Polyline, 0, len(e.targets)),
	}
	for i := range e.targets {
		if markers[i] != nil {
			frame.Markers = append(frame.Markers, *markers[i])
		}
		if polylines[i] != nil {
			frame.Polylines = append(frame.Polylines, *polylines[i])
		}
	}

	if ctx.Err() != nil {
		// Targets may have been skipped; keep the last complete frame.
		return frame
	}

	e.latest.Store(frame)
	metrics.SetSatellitesVisible(frame.VisibleCount())
	metrics.ObserveTickDuration(time.Since(start))
	return frame
}

// step refreshes and queries one target.
func (e *Engine) step(idx int, now time.Time) tickResult {
	tg := e.targets[idx]

	refresh(e.logger, kindSatellite, tg.sat.Elements, tg.sat.cache, now)
	refresh(e.logger, kindTrail, tg.trail.Elements, tg.trail.cache, now)

	res := tickResult{index: idx, marker: tg.sat.Marker(now)}

	// Polyline only fails with trail.ErrInsufficientPoints.
	if pl, err := tg.trail.Polyline(); err != nil {
		metrics.IncCurveFitFailures()
	} else {
		res.polyline = &pl
	}
	return res
}

// refresh runs a recompute pass on c when it is stale, and records it.
func refresh[T any](logger *slog.Logger, kind string, el orbit.Elements, c *window.Cache[T], now time.Time) {
	pass, ran := c.Refresh(now)
	if !ran {
		return
	}

	metrics.IncWindowRecompute(kind)
	metrics.ObserveScanSteps(kind, pass.Steps)

	if pass.Err != nil {
		metrics.IncPropagationErrors(kind)
		logger.Warn("propagation failed",
			"kind", kind,
			"name", el.Name,
			"norad_id", el.NORADID,
			"samples_kept", len(pass.Samples),
			"next_scan", pass.End.Format(time.RFC3339),
			"error", pass.Err,
		)
		return
	}

	logger.Debug("window recomputed",
		"kind", kind,
		"name", el.Name,
		"found", pass.Found(),
		"rise", pass.Rise.Format(time.RFC3339),
		"end", pass.End.Format(time.RFC3339),
		"samples", len(pass.Samples),
		"steps", pass.Steps,
	)
}

// Run ticks every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.Tick(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}
