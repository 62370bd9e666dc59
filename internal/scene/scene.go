// Package scene assembles the visual mappers into one tree and applies the
// gesture transform to its root group and camera every frame.
package scene

import (
	"math"
	"sync"

	"github.com/guidoenr/spectrascape/internal/frame"
	"github.com/guidoenr/spectrascape/internal/store"
	"github.com/guidoenr/spectrascape/internal/visual"
)

const (
	DefaultCameraDistance = 5.0
	DefaultFOV            = 75.0
)

// Group is the root transform node.
type Group struct {
	Rotation float64
}

// Camera is a perspective camera looking down -z at the origin.
type Camera struct {
	Distance     float64
	BaseDistance float64
	FOV          float64
}

// HalfHeight returns half the visible height of the z=0 plane at distance d.
func (c Camera) HalfHeight(d float64) float64 {
	return d * math.Tan(c.FOV*math.Pi/360)
}

// Options configures a Scene.
type Options struct {
	SurfaceGrid    int
	ParticleGrid   int
	ParticleSeed   int64
	FPS            float64
	CameraDistance float64
	FOV            float64
	Policy         visual.Policy
}

// DefaultOptions mirrors the stock layout.
func DefaultOptions() Options {
	return Options{
		SurfaceGrid:    64,
		ParticleGrid:   32,
		ParticleSeed:   1,
		FPS:            60,
		CameraDistance: DefaultCameraDistance,
		FOV:            DefaultFOV,
		Policy:         visual.DefaultPolicy(),
	}
}

// Scene owns the mappers and the composed transform. Update runs on the
// frame goroutine; renderers read through View under the same lock.
type Scene struct {
	audio   *store.Audio
	gesture *store.Gesture

	mu         sync.RWMutex
	background *visual.Background
	surface    *visual.Surface
	particles  *visual.Particles
	mappers    []visual.Mapper
	group      Group
	camera     Camera
	viewport   frame.Viewport
	lastFrame  frame.Context
	present    bool
}

// New builds a scene reading from the given stores.
func New(audio *store.Audio, gesture *store.Gesture, opts Options) *Scene {
	if opts.CameraDistance <= 0 {
		opts.CameraDistance = DefaultCameraDistance
	}
	if opts.FOV <= 0 || opts.FOV >= 180 {
		opts.FOV = DefaultFOV
	}
	s := &Scene{
		audio:      audio,
		gesture:    gesture,
		background: visual.NewBackground(opts.Policy),
		surface:    visual.NewSurface(opts.SurfaceGrid, opts.Policy),
		particles:  visual.NewParticles(opts.ParticleGrid, opts.FPS, opts.ParticleSeed, opts.Policy),
		camera: Camera{
			Distance:     opts.CameraDistance,
			BaseDistance: opts.CameraDistance,
			FOV:          opts.FOV,
		},
		viewport: frame.Viewport{Width: 1, Height: 1},
	}
	s.mappers = []visual.Mapper{s.background, s.surface, s.particles}
	return s
}

// Update is the scene's frame callback.
func (s *Scene) Update(fc frame.Context) {
	snap := s.audio.Get()
	g := s.gesture.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	if fc.Viewport.Width > 0 && fc.Viewport.Height > 0 {
		s.viewport = fc.Viewport
		s.background.SetResolution(float64(fc.Viewport.Width), float64(fc.Viewport.Height))
	}

	in := visual.NewInputs(fc.Now, fc.Elapsed, snap, g, s.extentLocked())
	for _, m := range s.mappers {
		m.Update(in)
	}

	s.group.Rotation = g.Rotation
	if g.Scale > 0 {
		s.camera.Distance = s.camera.BaseDistance / g.Scale
	}
	s.lastFrame = fc
	s.present = in.Present()
}

// extentLocked is the visible plane at the base camera distance.
func (s *Scene) extentLocked() visual.Extent {
	h := s.camera.HalfHeight(s.camera.BaseDistance)
	return visual.Extent{HalfWidth: h * s.viewport.Aspect(), HalfHeight: h}
}

// Mappers returns the mapper names in update order.
func (s *Scene) Mappers() []string {
	names := make([]string, len(s.mappers))
	for i, m := range s.mappers {
		names[i] = m.Name()
	}
	return names
}

// View holds the scene read lock for the duration of fn.
func (s *Scene) View(fn func(v *View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&View{s: s})
}

// Status is a point-in-time summary for overlays and the web adapter.
type Status struct {
	Frame     uint64  `json:"frame"`
	Elapsed   float64 `json:"elapsed"`
	Present   bool    `json:"audio"`
	Rotation  float64 `json:"rotation"`
	Distance  float64 `json:"distance"`
	PointSize float64 `json:"point_size"`
}

// Status reports the last frame.
func (s *Scene) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Frame:     s.lastFrame.Frame,
		Elapsed:   s.lastFrame.Elapsed,
		Present:   s.present,
		Rotation:  s.group.Rotation,
		Distance:  s.camera.Distance,
		PointSize: s.particles.PointSize(),
	}
}

// View is read access to a scene while its lock is held.
type View struct {
	s *Scene
}

func (v *View) Group() Group                   { return v.s.group }
func (v *View) Camera() Camera                 { return v.s.camera }
func (v *View) Viewport() frame.Viewport       { return v.s.viewport }
func (v *View) Surface() *visual.Surface       { return v.s.surface }
func (v *View) Particles() *visual.Particles   { return v.s.particles }
func (v *View) Background() *visual.Background { return v.s.background }

// Project maps a world point to normalized device coordinates. The point is
// rotated about the view axis by the group rotation, then perspective
// divided. ok is false for points at or behind the camera.
func (v *View) Project(x, y, z float64) (px, py, depth float64, ok bool) {
	return project(v.s.group, v.s.camera, v.s.viewport.Aspect(), x, y, z)
}

func project(g Group, c Camera, aspect, x, y, z float64) (px, py, depth float64, ok bool) {
	sin, cos := math.Sincos(g.Rotation)
	rx := x*cos - y*sin
	ry := x*sin + y*cos

	depth = c.Distance - z
	if depth <= 1e-6 {
		return 0, 0, depth, false
	}
	f := 1 / math.Tan(c.FOV*math.Pi/360)
	if aspect <= 0 {
		aspect = 1
	}
	return rx * f / (depth * aspect), ry * f / depth, depth, true
}
