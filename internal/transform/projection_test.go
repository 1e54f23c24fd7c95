package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name      string
		offsetDeg float64
		az, el    float64 // degrees
		want      mgl32.Vec2
	}{
		{"zenith is the origin", 0, 123, 90, mgl32.Vec2{0, 0}},
		{"north horizon", 0, 0, 0, mgl32.Vec2{0, 600}},
		{"east horizon", 0, 90, 0, mgl32.Vec2{600, 0}},
		{"south at 60 deg", 0, 180, 60, mgl32.Vec2{0, -300}},
		{"offset turns east to north", 90, 90, 0, mgl32.Vec2{0, 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjector(600, tt.offsetDeg)
			got := p.Project(LookAngles{Azimuth: tt.az * math.Pi / 180, Elevation: tt.el * math.Pi / 180})
			if !got.ApproxEqualThreshold(tt.want, 1e-3) {
				t.Errorf("Project(az=%v, el=%v) = %v, want %v", tt.az, tt.el, got, tt.want)
			}
		})
	}
}
