package visual

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Surface baseline colours.
var (
	SurfaceBaseA = colorful.Color{R: 0x1e / 255.0, G: 0x90 / 255.0, B: 0xff / 255.0}
	SurfaceBaseB = colorful.Color{R: 0xff / 255.0, G: 0x14 / 255.0, B: 0x93 / 255.0}
	SurfaceBaseC = colorful.Color{R: 0xff / 255.0, G: 0xff / 255.0, B: 0x00 / 255.0}
)

const (
	surfaceWaveFreq   = 5.0
	surfaceWaveAmp    = 0.1
	surfaceAudioScale = 0.5
)

// Surface is an n×n vertex grid over the 2×2 plane centred at the origin,
// displaced along z by a travelling wave plus a per-vertex audio offset.
type Surface struct {
	n       int
	idle    *Idle
	xs, ys  []float64
	offsets []float64
	z       []float64
	colors  [3]colorful.Color
}

// NewSurface builds a grid with n vertices per side (minimum 2).
func NewSurface(n int, p Policy) *Surface {
	if n < 2 {
		n = 2
	}
	count := n * n
	s := &Surface{
		n:       n,
		idle:    NewIdle(p),
		xs:      make([]float64, count),
		ys:      make([]float64, count),
		offsets: make([]float64, count),
		z:       make([]float64, count),
		colors:  [3]colorful.Color{SurfaceBaseA, SurfaceBaseB, SurfaceBaseC},
	}
	step := 2 / float64(n-1)
	for i := 0; i < count; i++ {
		ix, iy := i%n, i/n
		s.xs[i] = -1 + float64(ix)*step
		s.ys[i] = 1 - float64(iy)*step
	}
	return s
}

func (s *Surface) Name() string { return "surface" }

// Update recomputes every vertex elevation and the three colours.
func (s *Surface) Update(in Inputs) {
	mode := s.idle.Observe(in.Now, in.Present())
	f := s.idle.Factor()
	t := in.Elapsed

	for i := range s.z {
		switch mode {
		case ModeActive:
			ix, iy := i%s.n, i/s.n
			s.offsets[i] = in.Snapshot.Level(ix+iy) * surfaceAudioScale
		case ModeRelax:
			s.offsets[i] = Relax(s.offsets[i], 0, f)
		}
		wave := math.Sin(s.xs[i]*surfaceWaveFreq+t)*surfaceWaveAmp +
			math.Sin(s.ys[i]*surfaceWaveFreq+t)*surfaceWaveAmp
		s.z[i] = wave + s.offsets[i]
	}

	base := [3]colorful.Color{SurfaceBaseA, SurfaceBaseB, SurfaceBaseC}
	for k := range s.colors {
		switch mode {
		case ModeActive:
			s.colors[k] = permColor(in.Bands, k)
		case ModeRelax:
			s.colors[k] = RelaxColor(s.colors[k], base[k], f)
		}
	}
}

// Size returns vertices per side.
func (s *Surface) Size() int { return s.n }

// Len returns the vertex count.
func (s *Surface) Len() int { return len(s.z) }

// Vertex returns the position of vertex i, row-major from the top-left.
func (s *Surface) Vertex(i int) (x, y, z float64) {
	return s.xs[i], s.ys[i], s.z[i]
}

// Offset returns the audio displacement of vertex i.
func (s *Surface) Offset(i int) float64 { return s.offsets[i] }

// Colors returns colours A, B and C.
func (s *Surface) Colors() [3]colorful.Color { return s.colors }

// Shade mixes A→B across u in [0,1], then toward C by elevation.
func (s *Surface) Shade(u, elevation float64) colorful.Color {
	c := s.colors[0].BlendRgb(s.colors[1], clamp01(u))
	return c.BlendRgb(s.colors[2], clamp01(elevation*2+0.5))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
