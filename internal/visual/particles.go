package visual

import (
	"math"
	"math/rand"

	"github.com/charmbracelet/harmonica"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	// AudioLevels is the number of low bins driving particle elevation.
	AudioLevels = 16

	pushRadius   = 0.5
	pushStrength = 0.2
	waveAmp      = 0.1
	levelScale   = 0.2

	springFrequency = 6.0
	springDamping   = 0.9
)

// Particle is one point after this frame's displacement.
type Particle struct {
	X, Y, Z float64
	Color   colorful.Color
}

// Particles is an n×n point grid spanning the visible plane. Elevation follows
// a slow wave plus one of sixteen audio levels; points near the smoothed
// pointer are pushed away from it.
type Particles struct {
	n      int
	idle   *Idle
	spring harmonica.Spring
	extent Extent

	baseX, baseY []float64
	baseColor    []colorful.Color
	out          []Particle

	levels  [AudioLevels]float64
	size    float64
	tint    float64
	palette [3]colorful.Color

	pointerX, pointerY float64
	velX, velY         float64
}

// NewParticles builds the grid. Base colours are drawn from seed so that a
// run is reproducible; fps sets the pointer spring's time step.
func NewParticles(n int, fps float64, seed int64, p Policy) *Particles {
	if n < 2 {
		n = 2
	}
	if fps <= 0 {
		fps = 60
	}
	rng := rand.New(rand.NewSource(seed))
	count := n * n
	ps := &Particles{
		n:         n,
		idle:      NewIdle(p),
		spring:    harmonica.NewSpring(harmonica.FPS(int(math.Round(fps))), springFrequency, springDamping),
		baseX:     make([]float64, count),
		baseY:     make([]float64, count),
		baseColor: make([]colorful.Color, count),
		out:       make([]Particle, count),
		size:      1,
	}
	for i := range ps.baseColor {
		ps.baseColor[i] = colorful.Color{R: rng.Float64(), G: rng.Float64(), B: rng.Float64()}
	}
	ps.layout(Extent{HalfWidth: 1, HalfHeight: 1})
	return ps
}

// layout spreads the grid over ext. Index i*n+j is column i, row j.
func (ps *Particles) layout(ext Extent) {
	ps.extent = ext
	for i := 0; i < ps.n; i++ {
		for j := 0; j < ps.n; j++ {
			k := i*ps.n + j
			ps.baseX[k] = (float64(i)/float64(ps.n-1) - 0.5) * 2 * ext.HalfWidth
			ps.baseY[k] = (float64(j)/float64(ps.n-1) - 0.5) * 2 * ext.HalfHeight
		}
	}
}

func (ps *Particles) Name() string { return "particles" }

// Update advances levels, pointer smoothing and every particle position.
func (ps *Particles) Update(in Inputs) {
	if in.Extent.HalfWidth > 0 && in.Extent.HalfHeight > 0 && in.Extent != ps.extent {
		ps.layout(in.Extent)
	}

	mode := ps.idle.Observe(in.Now, in.Present())
	f := ps.idle.Factor()
	switch mode {
	case ModeActive:
		for i := range ps.levels {
			ps.levels[i] = in.Snapshot.Level(i)
		}
		overall := in.Bands.Overall()
		ps.size = 1 + overall
		ps.tint = overall
		for k := range ps.palette {
			ps.palette[k] = permColor(in.Bands, k)
		}
	case ModeRelax:
		for i := range ps.levels {
			ps.levels[i] = Relax(ps.levels[i], 0, f)
		}
		ps.size = Relax(ps.size, 1, f)
		ps.tint = Relax(ps.tint, 0, f)
	}

	targetX := in.Gesture.Pointer.X * ps.extent.HalfWidth
	targetY := in.Gesture.Pointer.Y * ps.extent.HalfHeight
	ps.pointerX, ps.velX = ps.spring.Update(ps.pointerX, ps.velX, targetX)
	ps.pointerY, ps.velY = ps.spring.Update(ps.pointerY, ps.velY, targetY)

	t := in.Elapsed
	for k := range ps.out {
		x, y := ps.baseX[k], ps.baseY[k]
		z := math.Sin(t+x*0.1+y*0.1)*waveAmp + ps.levels[k%AudioLevels]*levelScale

		dx, dy, dz := ps.pointerX-x, ps.pointerY-y, -z
		if d := math.Sqrt(dx*dx + dy*dy + dz*dz); d > 0 && d < pushRadius {
			push := (1 - d/pushRadius) * pushStrength / d
			x -= dx * push
			y -= dy * push
			z -= dz * push
		}

		ps.out[k] = Particle{
			X:     x,
			Y:     y,
			Z:     z,
			Color: ps.baseColor[k].BlendRgb(ps.palette[k%3], ps.tint),
		}
	}
}

// Len returns the particle count.
func (ps *Particles) Len() int { return len(ps.out) }

// At returns particle k as of the last Update.
func (ps *Particles) At(k int) Particle { return ps.out[k] }

// Levels returns the sixteen smoothed audio levels.
func (ps *Particles) Levels() [AudioLevels]float64 { return ps.levels }

// PointSize is the point scale multiplier, 1 at rest.
func (ps *Particles) PointSize() float64 { return ps.size }

// Pointer returns the smoothed pointer in world units.
func (ps *Particles) Pointer() (x, y float64) { return ps.pointerX, ps.pointerY }
