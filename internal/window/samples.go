package window

import (
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/make-42/tasogare/internal/transform"
)

// Sample is one projected above-horizon position inside a window.
type Sample struct {
	Time     time.Time
	Position mgl32.Vec2
	Look     transform.LookAngles
}

// Samples is a window of samples with strictly increasing times.
type Samples []Sample

// Interpolate returns the position at now, or false when the window is empty
// or now falls outside [first, last].
func (s Samples) Interpolate(now time.Time) (mgl32.Vec2, bool) {
	if len(s) == 0 || now.Before(s[0].Time) || now.After(s[len(s)-1].Time) {
		return mgl32.Vec2{}, false
	}

	i := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(now) })
	if s[i].Time.Equal(now) {
		return s[i].Position, true
	}

	a, b := s[i-1], s[i]
	lambda := float32(now.Sub(a.Time).Seconds() / b.Time.Sub(a.Time).Seconds())
	lambda = mgl32.Clamp(lambda, 0, 1)
	return a.Position.Mul(1 - lambda).Add(b.Position.Mul(lambda)), true
}

// Span returns the time between the first and last sample.
func (s Samples) Span() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Time.Sub(s[0].Time)
}

// Positions returns the projected positions in time order.
func (s Samples) Positions() []mgl32.Vec2 {
	out := make([]mgl32.Vec2, len(s))
	for i, sm := range s {
		out[i] = sm.Position
	}
	return out
}
