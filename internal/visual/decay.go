package visual

import (
	"time"

	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultGrace  = 100 * time.Millisecond
	DefaultFactor = 0.1
)

// Policy controls how mapper values relax once audio goes away.
type Policy struct {
	Grace  time.Duration
	Factor float64
}

// DefaultPolicy returns a 100ms grace window and a 0.1 per-frame factor.
func DefaultPolicy() Policy {
	return Policy{Grace: DefaultGrace, Factor: DefaultFactor}
}

func (p Policy) normalized() Policy {
	if p.Grace < 0 {
		p.Grace = 0
	}
	if p.Factor <= 0 || p.Factor > 1 {
		p.Factor = DefaultFactor
	}
	return p
}

// Mode is what a mapper should do with its values this frame.
type Mode int

const (
	// ModeActive means audio is present: recompute from the snapshot.
	ModeActive Mode = iota
	// ModeHold means audio just went away: keep the last values.
	ModeHold
	// ModeRelax means pull values toward baseline.
	ModeRelax
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeHold:
		return "hold"
	default:
		return "relax"
	}
}

// Idle tracks the last frame that had audio. Each mapper owns one.
type Idle struct {
	policy   Policy
	lastSeen time.Time
	seen     bool
}

// NewIdle returns a tracker that starts relaxed.
func NewIdle(p Policy) *Idle {
	return &Idle{policy: p.normalized()}
}

// Factor returns the per-frame relax factor.
func (i *Idle) Factor() float64 { return i.policy.Factor }

// Observe records one frame and returns the mode to apply.
func (i *Idle) Observe(now time.Time, present bool) Mode {
	if present {
		i.lastSeen = now
		i.seen = true
		return ModeActive
	}
	if i.seen && now.Sub(i.lastSeen) <= i.policy.Grace && i.policy.Grace > 0 {
		return ModeHold
	}
	return ModeRelax
}

// Relax moves v a fraction f of the way to baseline.
func Relax(v, baseline, f float64) float64 {
	return v + (baseline-v)*f
}

// RelaxColor relaxes each channel of c toward baseline.
func RelaxColor(c, baseline colorful.Color, f float64) colorful.Color {
	return c.BlendRgb(baseline, f)
}

// permColor builds an RGB colour from band permutation k.
func permColor(b analyzer.Bands, k int) colorful.Color {
	r, g, bl := b.Permute(k)
	return colorful.Color{R: r, G: g, B: bl}
}
