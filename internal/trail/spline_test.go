package trail

import (
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arc() Spline {
	return Spline{
		Tension: DefaultTension,
		Points: []mgl32.Vec2{
			{-300, 0}, {-150, 200}, {0, 260}, {150, 200}, {300, 0},
		},
	}
}

func assertNear(t *testing.T, want, got mgl32.Vec2) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-3), "want %v, got %v", want, got)
}

func TestCurveNeedsTwoPoints(t *testing.T) {
	for _, pts := range [][]mgl32.Vec2{nil, {{1, 2}}} {
		c, err := Spline{Tension: DefaultTension, Points: pts}.Curve()
		assert.ErrorIs(t, err, ErrInsufficientPoints)
		assert.Nil(t, c)
	}
}

func TestPositionsCount(t *testing.T) {
	c, err := arc().Curve()
	require.NoError(t, err)
	require.Equal(t, 4, c.Segments())

	for _, n := range []int{2, 3, 64, 600} {
		pts := slices.Collect(c.Positions(n))
		assert.Len(t, pts, n)
	}
	assert.Empty(t, slices.Collect(c.Positions(0)))
	assert.Len(t, slices.Collect(c.Positions(1)), 1)
}

func TestCurvePassesThroughControlPoints(t *testing.T) {
	s := arc()
	c, err := s.Curve()
	require.NoError(t, err)

	// 8 steps per segment puts every 8th position on a control point.
	pts := slices.Collect(c.Positions(4*8 + 1))
	for i, p := range s.Points {
		assertNear(t, p, pts[i*8])
	}
	assertNear(t, s.Points[0], pts[0])
	assertNear(t, s.Points[4], pts[len(pts)-1])
}

func TestTwoPointCurveIsStraight(t *testing.T) {
	c, err := Spline{Tension: DefaultTension, Points: []mgl32.Vec2{{0, 0}, {100, 50}}}.Curve()
	require.NoError(t, err)

	for p := range c.Positions(11) {
		assert.InDelta(t, p.X()/2, p.Y(), 1e-3)
		assert.GreaterOrEqual(t, p.X(), float32(-1e-3))
		assert.LessOrEqual(t, p.X(), float32(100+1e-3))
	}
}

func TestPositionsRestartableAndStoppable(t *testing.T) {
	c, err := arc().Curve()
	require.NoError(t, err)

	seq := c.Positions(16)
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))

	taken := 0
	for range seq {
		taken++
		if taken == 3 {
			break
		}
	}
	assert.Equal(t, 3, taken)
}

func TestArcStaysSmooth(t *testing.T) {
	c, err := arc().Curve()
	require.NoError(t, err)

	// A symmetric arc fitted with Catmull-Rom tangents never overshoots the apex by much.
	for p := range c.Positions(200) {
		assert.LessOrEqual(t, p.Y(), float32(275))
		assert.GreaterOrEqual(t, p.Y(), float32(-1e-3))
	}
}

func TestEndTangentsMirrored(t *testing.T) {
	c, err := Spline{Tension: DefaultTension, Points: []mgl32.Vec2{{0, 0}, {100, 0}, {100, 100}}}.Curve()
	require.NoError(t, err)
	require.Equal(t, 2, c.Segments())

	// Mirroring puts P[-1] at (-100, 0), so m_0 = 0.5·(200, 0).
	assertNear(t, mgl32.Vec2{100.0 / 3, 0}, c.segments[0][1])
	// P[3] mirrors to (100, 200), so m_2 = 0.5·(0, 200).
	assertNear(t, mgl32.Vec2{100, 200.0 / 3}, c.segments[1][2])
}
