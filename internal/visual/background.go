package visual

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Background baseline palette coefficients.
var (
	BackgroundBaseA = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	BackgroundBaseB = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	BackgroundBaseC = colorful.Color{R: 1, G: 1, B: 1}
)

// backgroundFollow is how fast the palette chases the bands while active.
const backgroundFollow = 0.05

// Uniforms is the background's per-frame parameter block.
type Uniforms struct {
	Time       float64
	Resolution [2]float64
	Low        float64
	Mid        float64
	High       float64
	ColorA     colorful.Color
	ColorB     colorful.Color
	ColorC     colorful.Color
}

// Background is a full-screen cosine palette gradient with ring waves.
type Background struct {
	idle *Idle
	u    Uniforms
}

// NewBackground starts at the baseline palette.
func NewBackground(p Policy) *Background {
	return &Background{
		idle: NewIdle(p),
		u: Uniforms{
			Resolution: [2]float64{1, 1},
			ColorA:     BackgroundBaseA,
			ColorB:     BackgroundBaseB,
			ColorC:     BackgroundBaseC,
		},
	}
}

func (b *Background) Name() string { return "background" }

// SetResolution records the output size used for aspect correction.
func (b *Background) SetResolution(w, h float64) {
	if w > 0 && h > 0 {
		b.u.Resolution = [2]float64{w, h}
	}
}

// Update refreshes time, band uniforms and palette colours.
func (b *Background) Update(in Inputs) {
	b.u.Time = in.Elapsed

	mode := b.idle.Observe(in.Now, in.Present())
	f := b.idle.Factor()
	switch mode {
	case ModeActive:
		b.u.Low, b.u.Mid, b.u.High = in.Bands.Low, in.Bands.Mid, in.Bands.High
		b.u.ColorA = b.u.ColorA.BlendRgb(permColor(in.Bands, 0), backgroundFollow)
		b.u.ColorB = b.u.ColorB.BlendRgb(permColor(in.Bands, 1), backgroundFollow)
		b.u.ColorC = b.u.ColorC.BlendRgb(permColor(in.Bands, 2), backgroundFollow)
	case ModeRelax:
		b.u.Low = Relax(b.u.Low, 0, f)
		b.u.Mid = Relax(b.u.Mid, 0, f)
		b.u.High = Relax(b.u.High, 0, f)
		b.u.ColorA = RelaxColor(b.u.ColorA, BackgroundBaseA, f)
		b.u.ColorB = RelaxColor(b.u.ColorB, BackgroundBaseB, f)
		b.u.ColorC = RelaxColor(b.u.ColorC, BackgroundBaseC, f)
	}
}

// Uniforms returns the current parameter block.
func (b *Background) Uniforms() Uniforms { return b.u }

// Sample evaluates the gradient at texture coordinate (u, v), both in
// [0,1]. The result is clamped to displayable range.
func (b *Background) Sample(u, v float64) colorful.Color {
	un := b.u
	px := u*2 - 1
	py := v*2 - 1
	if un.Resolution[1] > 0 {
		px *= un.Resolution[0] / un.Resolution[1]
	}

	dist := math.Hypot(px, py)
	angle := math.Atan2(py, px)
	t := dist + un.Time*0.1 + math.Sin(angle*5+un.Time)*0.1

	a := offset(un.ColorA, un.Low, un.Mid, un.High)
	bb := offset(un.ColorB, un.Mid, un.High, un.Low)
	c := offset(un.ColorC, un.High, un.Low, un.Mid)

	waves := math.Sin(dist*20-un.Time*2)*0.5 + 0.5
	waves *= 0.01 + (0.05-0.01)*(un.Low+un.Mid+un.High)/3

	col := colorful.Color{
		R: cosinePalette(t, a.R, bb.R, c.R) + waves,
		G: cosinePalette(t, a.G, bb.G, c.G) + waves,
		B: cosinePalette(t, a.B, bb.B, c.B) + waves,
	}
	return col.Clamped()
}

func offset(c colorful.Color, r, g, b float64) colorful.Color {
	return colorful.Color{R: c.R + r*0.2, G: c.G + g*0.2, B: c.B + b*0.2}
}

// cosinePalette is a + b·cos(2π(c·t + 0.5)).
func cosinePalette(t, a, b, c float64) float64 {
	return a + b*math.Cos(6.28318*(c*t+0.5))
}
