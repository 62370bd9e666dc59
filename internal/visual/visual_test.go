package visual

import (
	"math"
	"testing"
	"time"

	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/store"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const frameStep = 16 * time.Millisecond

func loud() *analyzer.Snapshot {
	bins := make([]uint8, 128)
	for i := range bins {
		bins[i] = 255
	}
	return analyzer.NewSnapshot(bins, epoch)
}

func inputsAt(frame int, snap *analyzer.Snapshot) Inputs {
	now := epoch.Add(time.Duration(frame) * frameStep)
	return NewInputs(now, float64(frame)*frameStep.Seconds(), snap, store.GestureState{Scale: 1}, Extent{HalfWidth: 2, HalfHeight: 2})
}

func TestIdleModes(t *testing.T) {
	idle := NewIdle(Policy{Grace: 100 * time.Millisecond, Factor: 0.1})

	assert.Equal(t, ModeRelax, idle.Observe(epoch, false), "never seen audio relaxes")
	assert.Equal(t, ModeActive, idle.Observe(epoch, true))
	assert.Equal(t, ModeHold, idle.Observe(epoch.Add(50*time.Millisecond), false))
	assert.Equal(t, ModeHold, idle.Observe(epoch.Add(100*time.Millisecond), false))
	assert.Equal(t, ModeRelax, idle.Observe(epoch.Add(101*time.Millisecond), false))
	assert.Equal(t, ModeActive, idle.Observe(epoch.Add(200*time.Millisecond), true))
}

func TestPolicyNormalization(t *testing.T) {
	idle := NewIdle(Policy{Grace: -time.Second, Factor: 5})
	assert.Equal(t, DefaultFactor, idle.Factor())
	idle.Observe(epoch, true)
	assert.Equal(t, ModeRelax, idle.Observe(epoch.Add(time.Millisecond), false))
}

func TestRelaxConvergence(t *testing.T) {
	for _, start := range []float64{-3, 0.2, 1, 42} {
		v := start
		for i := 0; i < 300; i++ {
			v = Relax(v, 1, 0.1)
		}
		assert.InDelta(t, 1, v, 1e-9, "start %v", start)
	}

	c := colorful.Color{R: 1, G: 0, B: 0.3}
	base := colorful.Color{R: 0.1, G: 0.5, B: 1}
	for i := 0; i < 300; i++ {
		c = RelaxColor(c, base, 0.1)
	}
	assert.True(t, c.AlmostEqualRgb(base))
}

// Ten loud frames then twenty silent ones leave 0.9^20 of the offset.
func TestSurfaceOffsetDecaysGeometrically(t *testing.T) {
	s := NewSurface(4, Policy{Grace: 0, Factor: 0.1})
	snap := loud()
	for f := 0; f < 10; f++ {
		s.Update(inputsAt(f, snap))
	}
	initial := s.Offset(0)
	require.InDelta(t, 0.5, initial, 1e-12)

	for f := 10; f < 30; f++ {
		s.Update(inputsAt(f, nil))
	}
	want := initial * math.Pow(0.9, 20)
	assert.InDelta(t, want, s.Offset(0), 1e-12)
	assert.InDelta(t, 0.12, s.Offset(0)/initial, 0.01)
}

func TestSurfaceHoldsDuringGrace(t *testing.T) {
	s := NewSurface(3, Policy{Grace: time.Second, Factor: 0.1})
	s.Update(inputsAt(0, loud()))
	colors := s.Colors()
	for f := 1; f < 10; f++ {
		s.Update(inputsAt(f, nil))
	}
	assert.Equal(t, 0.5, s.Offset(4))
	assert.Equal(t, colors, s.Colors())
}

func TestSurfaceActiveValues(t *testing.T) {
	bins := make([]uint8, 128)
	for i := 0; i < 5; i++ {
		bins[i] = 255
	}
	snap := analyzer.NewSnapshot(bins, epoch)
	s := NewSurface(4, DefaultPolicy())
	in := inputsAt(0, snap)
	s.Update(in)

	// vertex (ix=1, iy=1) reads bin 2, vertex (ix=3, iy=3) reads bin 6.
	assert.InDelta(t, 0.5, s.Offset(1*4+1), 1e-12)
	assert.InDelta(t, 0, s.Offset(3*4+3), 1e-12)

	x, y, z := s.Vertex(5)
	wave := math.Sin(x*5)*0.1 + math.Sin(y*5)*0.1
	assert.InDelta(t, wave+0.5, z, 1e-12)

	c := s.Colors()
	assert.Equal(t, colorful.Color{R: 1, G: 0, B: 0}, c[0])
	assert.Equal(t, colorful.Color{R: 0, G: 0, B: 1}, c[1])
	assert.Equal(t, colorful.Color{R: 0, G: 1, B: 0}, c[2])
}

func TestSurfaceGridCorners(t *testing.T) {
	s := NewSurface(3, DefaultPolicy())
	x, y, _ := s.Vertex(0)
	assert.Equal(t, -1.0, x)
	assert.Equal(t, 1.0, y)
	x, y, _ = s.Vertex(s.Len() - 1)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, -1.0, y)
	assert.Equal(t, 9, s.Len())
}

func TestSurfaceColoursRelaxToBaseline(t *testing.T) {
	s := NewSurface(2, Policy{Grace: 0, Factor: 0.1})
	s.Update(inputsAt(0, loud()))
	for f := 1; f < 400; f++ {
		s.Update(inputsAt(f, nil))
	}
	c := s.Colors()
	assert.True(t, c[0].AlmostEqualRgb(SurfaceBaseA))
	assert.True(t, c[1].AlmostEqualRgb(SurfaceBaseB))
	assert.True(t, c[2].AlmostEqualRgb(SurfaceBaseC))
}

func TestSurfaceNeverStatic(t *testing.T) {
	s := NewSurface(3, DefaultPolicy())
	s.Update(inputsAt(0, nil))
	_, _, z0 := s.Vertex(4)
	s.Update(inputsAt(30, nil))
	_, _, z1 := s.Vertex(4)
	assert.NotEqual(t, z0, z1)
}

func TestSurfaceShade(t *testing.T) {
	s := NewSurface(2, DefaultPolicy())
	assert.True(t, s.Shade(0, -0.25).AlmostEqualRgb(SurfaceBaseA))
	assert.True(t, s.Shade(1, -0.25).AlmostEqualRgb(SurfaceBaseB))
	assert.True(t, s.Shade(0.5, 0.25).AlmostEqualRgb(SurfaceBaseC))
}

func TestParticlesLevelsAndSize(t *testing.T) {
	p := NewParticles(4, 60, 1, Policy{Grace: 0, Factor: 0.1})
	p.Update(inputsAt(0, loud()))

	for _, l := range p.Levels() {
		assert.Equal(t, 1.0, l)
	}
	assert.Equal(t, 2.0, p.PointSize())

	for f := 1; f < 400; f++ {
		p.Update(inputsAt(f, nil))
	}
	assert.InDelta(t, 1, p.PointSize(), 1e-9)
	for _, l := range p.Levels() {
		assert.InDelta(t, 0, l, 1e-9)
	}
}

func TestParticlesElevationUsesLevelByIndex(t *testing.T) {
	bins := make([]uint8, 128)
	bins[3] = 255
	p := NewParticles(4, 60, 1, DefaultPolicy())
	in := inputsAt(0, analyzer.NewSnapshot(bins, epoch))
	in.Gesture.Pointer = store.Point{X: 1, Y: 1}
	p.Update(in)

	// particle 3 sits at column 0, row 3; far from the pointer spring at the origin.
	pt := p.At(3)
	wave := math.Sin(pt.X*0.1+pt.Y*0.1) * 0.1
	assert.InDelta(t, wave+0.2, pt.Z, 1e-9)
	pt = p.At(2)
	assert.InDelta(t, math.Sin(pt.X*0.1+pt.Y*0.1)*0.1, pt.Z, 1e-9)
}

func TestParticlesPushedAwayFromPointer(t *testing.T) {
	// A 5x5 grid over ±1 puts particle 12 at the origin and 13 at (0, 0.5).
	p := NewParticles(5, 60, 1, DefaultPolicy())
	ext := Extent{HalfWidth: 1, HalfHeight: 1}
	in := NewInputs(epoch, 0, nil, store.GestureState{Pointer: store.Point{X: 0, Y: 0.1}}, ext)
	for i := 0; i < 240; i++ {
		p.Update(in)
	}
	px, py := p.Pointer()
	require.InDelta(t, 0, px, 1e-3)
	require.InDelta(t, 0.1, py, 1e-3)

	moved := p.At(12)
	assert.Less(t, moved.Y, 0.0, "particle below the pointer is pushed down")

	far := p.At(0)
	assert.InDelta(t, -1, far.X, 1e-9)
	assert.InDelta(t, -1, far.Y, 1e-9)
}

func TestParticleColoursAreSeeded(t *testing.T) {
	a := NewParticles(3, 60, 42, DefaultPolicy())
	b := NewParticles(3, 60, 42, DefaultPolicy())
	a.Update(inputsAt(0, nil))
	b.Update(inputsAt(0, nil))
	for k := 0; k < a.Len(); k++ {
		assert.Equal(t, a.At(k).Color, b.At(k).Color)
	}
}

func TestParticlesNeverStatic(t *testing.T) {
	p := NewParticles(3, 60, 1, DefaultPolicy())
	p.Update(inputsAt(0, nil))
	z0 := p.At(4).Z
	p.Update(inputsAt(60, nil))
	assert.NotEqual(t, z0, p.At(4).Z)
}

func TestParticlesRelayoutOnExtentChange(t *testing.T) {
	p := NewParticles(2, 60, 1, DefaultPolicy())
	p.Update(NewInputs(epoch, 0, nil, store.GestureState{}, Extent{HalfWidth: 3, HalfHeight: 2}))
	last := p.At(p.Len() - 1)
	assert.InDelta(t, 3, last.X, 1e-9)
	assert.InDelta(t, 2, last.Y, 1e-9)
}

func TestBackgroundFollowsBandsSlowly(t *testing.T) {
	b := NewBackground(DefaultPolicy())
	b.Update(inputsAt(0, loud()))
	u := b.Uniforms()
	assert.Equal(t, 1.0, u.Low)
	assert.InDelta(t, 0.5+0.5*0.05, u.ColorA.R, 1e-12)
	assert.InDelta(t, 1.0, u.ColorC.R, 1e-12)
}

func TestBackgroundRelaxesToBaseline(t *testing.T) {
	b := NewBackground(Policy{Grace: 0, Factor: 0.1})
	for f := 0; f < 100; f++ {
		b.Update(inputsAt(f, loud()))
	}
	for f := 100; f < 500; f++ {
		b.Update(inputsAt(f, nil))
	}
	u := b.Uniforms()
	assert.InDelta(t, 0, u.Low+u.Mid+u.High, 1e-9)
	assert.True(t, u.ColorA.AlmostEqualRgb(BackgroundBaseA))
	assert.True(t, u.ColorB.AlmostEqualRgb(BackgroundBaseB))
	assert.True(t, u.ColorC.AlmostEqualRgb(BackgroundBaseC))
}

func TestBackgroundSampleAtRest(t *testing.T) {
	b := NewBackground(DefaultPolicy())
	b.Update(inputsAt(0, nil))

	// At the centre with t=0 the palette term is 0.5+0.5·cos(π) = 0 and
	// the ring wave contributes 0.5·0.01.
	c := b.Sample(0.5, 0.5)
	assert.InDelta(t, 0.005, c.R, 1e-6)
	assert.InDelta(t, 0.005, c.G, 1e-6)
	assert.InDelta(t, 0.005, c.B, 1e-6)

	for _, uv := range [][2]float64{{0, 0}, {1, 1}, {0.2, 0.9}} {
		c := b.Sample(uv[0], uv[1])
		assert.True(t, c.IsValid(), "sample %v out of range: %v", uv, c)
	}
}

func TestInputsPresence(t *testing.T) {
	assert.False(t, inputsAt(0, nil).Present())
	in := inputsAt(0, loud())
	assert.True(t, in.Present())
	assert.Equal(t, 1.0, in.Bands.Low)
}
