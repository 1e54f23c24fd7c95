package window

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func lineSamples(n int, step time.Duration) Samples {
	s := make(Samples, n)
	for i := range s {
		s[i] = Sample{
			Time:     t0.Add(time.Duration(i) * step),
			Position: mgl32.Vec2{float32(i) * 10, float32(i) * -5},
		}
	}
	return s
}

func TestInterpolateAtKnots(t *testing.T) {
	s := lineSamples(5, 30*time.Second)

	for _, sm := range s {
		got, ok := s.Interpolate(sm.Time)
		require.True(t, ok)
		assert.Equal(t, sm.Position, got)
	}
}

func TestInterpolateAtIrregularKnots(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	coord := func() float32 { return rng.Float32()*1200 - 600 }

	for range 1000 {
		s := make(Samples, 4)
		at := t0
		for i := range s {
			at = at.Add(time.Duration(1+rng.IntN(90_000)) * time.Millisecond)
			s[i] = Sample{Time: at, Position: mgl32.Vec2{coord(), coord()}}
		}
		for _, sm := range s {
			got, ok := s.Interpolate(sm.Time)
			require.True(t, ok)
			require.Equal(t, sm.Position, got, "knot at %v", sm.Time)
		}
	}
}

func TestInterpolateBetweenKnots(t *testing.T) {
	s := lineSamples(5, 30*time.Second)

	got, ok := s.Interpolate(t0.Add(45 * time.Second))
	require.True(t, ok)
	assert.InDelta(t, 15, got.X(), 1e-4)
	assert.InDelta(t, -7.5, got.Y(), 1e-4)

	// Every interpolated point lies on the segment between its neighbours.
	for ms := 0; ms <= 120_000; ms += 7_000 {
		p, ok := s.Interpolate(t0.Add(time.Duration(ms) * time.Millisecond))
		require.True(t, ok)
		assert.InDelta(t, -0.5*p.X(), p.Y(), 1e-3, "point %v off the line", p)
	}
}

func TestInterpolateOutsideWindow(t *testing.T) {
	s := lineSamples(3, 30*time.Second)

	_, ok := s.Interpolate(t0.Add(-time.Nanosecond))
	assert.False(t, ok, "before first sample")

	_, ok = s.Interpolate(t0.Add(60*time.Second + time.Nanosecond))
	assert.False(t, ok, "after last sample")

	_, ok = Samples(nil).Interpolate(t0)
	assert.False(t, ok, "empty window")
}

func TestInterpolateSingleSample(t *testing.T) {
	s := lineSamples(1, time.Second)

	got, ok := s.Interpolate(t0)
	require.True(t, ok)
	assert.Equal(t, s[0].Position, got)

	_, ok = s.Interpolate(t0.Add(time.Second))
	assert.False(t, ok)
}

func TestSpanAndPositions(t *testing.T) {
	s := lineSamples(4, 30*time.Second)
	assert.Equal(t, 90*time.Second, s.Span())
	assert.Zero(t, s[:1].Span())
	assert.Zero(t, Samples(nil).Span())

	pos := s.Positions()
	require.Len(t, pos, 4)
	assert.Equal(t, mgl32.Vec2{30, -15}, pos[3])
}
