package scene

import (
	"math"
	"testing"
	"time"

	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/frame"
	"github.com/guidoenr/spectrascape/internal/store"
	"github.com/guidoenr/spectrascape/internal/visual"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMapper struct {
	s         *Scene
	rotations []float64
	present   []bool
}

func (r *recordingMapper) Name() string { return "recorder" }

func (r *recordingMapper) Update(in visual.Inputs) {
	r.rotations = append(r.rotations, r.s.group.Rotation)
	r.present = append(r.present, in.Present())
}

func newScene(t *testing.T) (*Scene, *store.Audio, *store.Gesture) {
	t.Helper()
	opts := DefaultOptions()
	opts.SurfaceGrid = 4
	opts.ParticleGrid = 4
	a, g := store.NewAudio(), store.NewGesture()
	return New(a, g, opts), a, g
}

func ctxAt(n uint64) frame.Context {
	return frame.Context{
		Frame:    n,
		Now:      time.Unix(0, 0).Add(time.Duration(n) * 16 * time.Millisecond),
		Elapsed:  float64(n) * 0.016,
		Delta:    0.016,
		Viewport: frame.Viewport{Width: 160, Height: 90},
	}
}

func TestMapperOrder(t *testing.T) {
	s, _, _ := newScene(t)
	assert.Equal(t, []string{"background", "surface", "particles"}, s.Mappers())
}

func TestCameraDistanceFollowsScale(t *testing.T) {
	s, _, g := newScene(t)

	s.Update(ctxAt(0))
	s.View(func(v *View) {
		assert.Equal(t, 5.0, v.Camera().Distance)
		assert.Equal(t, 0.0, v.Group().Rotation)
	})

	g.SetScale(2)
	g.SetRotation(math.Pi / 3)
	s.Update(ctxAt(1))
	s.View(func(v *View) {
		assert.InDelta(t, 2.5, v.Camera().Distance, 1e-12)
		assert.Equal(t, 5.0, v.Camera().BaseDistance)
		assert.InDelta(t, math.Pi/3, v.Group().Rotation, 1e-12)
	})

	g.SetScale(0.5)
	s.Update(ctxAt(2))
	assert.InDelta(t, 10, s.Status().Distance, 1e-12)
}

func TestTransformAppliedAfterMappers(t *testing.T) {
	s, a, g := newScene(t)
	rec := &recordingMapper{s: s}
	s.mappers = append(s.mappers, rec)

	g.SetRotation(1)
	s.Update(ctxAt(0))
	a.Set(analyzer.NewSnapshot(make([]uint8, 128), time.Unix(0, 0)))
	g.SetRotation(2)
	s.Update(ctxAt(1))

	require.Len(t, rec.rotations, 2)
	assert.Equal(t, []float64{0, 1}, rec.rotations, "mappers see the previous frame's transform")
	assert.Equal(t, []bool{false, true}, rec.present)
	assert.Equal(t, 2.0, s.Status().Rotation)
	assert.True(t, s.Status().Present)
}

func TestProject(t *testing.T) {
	cam := Camera{Distance: 5, BaseDistance: 5, FOV: 90}

	x, y, depth, ok := project(Group{}, cam, 1, 0, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	assert.Equal(t, 5.0, depth)

	// tan(45°) = 1, so a point at distance 5 and height 5 sits on the top edge.
	_, y, _, _ = project(Group{}, cam, 1, 0, 5, 0)
	assert.InDelta(t, 1, y, 1e-12)

	x, y, _, _ = project(Group{Rotation: math.Pi / 2}, cam, 1, 5, 0, 0)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, 1, y, 1e-12)

	x, _, _, _ = project(Group{}, cam, 2, 5, 0, 0)
	assert.InDelta(t, 0.5, x, 1e-12)

	_, _, _, ok = project(Group{}, cam, 1, 0, 0, 5)
	assert.False(t, ok)
}

func TestZoomEnlargesProjection(t *testing.T) {
	s, _, g := newScene(t)
	s.Update(ctxAt(0))
	var before float64
	s.View(func(v *View) { before, _, _, _ = v.Project(1, 0, 0) })

	g.SetScale(2)
	s.Update(ctxAt(1))
	var after float64
	s.View(func(v *View) { after, _, _, _ = v.Project(1, 0, 0) })

	assert.Greater(t, after, before)
}

func TestExtentMatchesViewport(t *testing.T) {
	s, _, _ := newScene(t)
	s.Update(ctxAt(0))
	s.mu.RLock()
	ext := s.extentLocked()
	s.mu.RUnlock()

	h := 5 * math.Tan(75*math.Pi/360)
	assert.InDelta(t, h, ext.HalfHeight, 1e-12)
	assert.InDelta(t, h*160/90, ext.HalfWidth, 1e-12)
}
