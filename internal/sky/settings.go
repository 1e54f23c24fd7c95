package sky

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/transform"
	"github.com/make-42/tasogare/internal/window"
)

// Settings is the read-only snapshot every entity is built from.
type Settings struct {
	Observer  transform.Observer
	Projector transform.Projector
	Scan      window.ScanConfig
	Backend   orbit.Backend

	TrailColor      mgl32.Vec4
	TrailResolution int
	TrailTension    float32

	Workers int
}
