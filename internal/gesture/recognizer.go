// Package gesture turns raw pointer and touch events into gesture store
// updates: touch positions, pointer drag, pinch scale and twist rotation.
package gesture

import (
	"log/slog"
	"math"

	"github.com/guidoenr/spectrascape/internal/logger"
	"github.com/guidoenr/spectrascape/internal/store"
)

// Phase is the lifecycle stage of a touch event.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseMove
	PhaseEnd
	PhaseCancel
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseMove:
		return "move"
	case PhaseEnd:
		return "end"
	case PhaseCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ParsePhase maps the wire names used by input adapters.
func ParsePhase(s string) (Phase, bool) {
	switch s {
	case "start":
		return PhaseStart, true
	case "move":
		return PhaseMove, true
	case "end":
		return PhaseEnd, true
	case "cancel":
		return PhaseCancel, true
	}
	return 0, false
}

// Contact is one touch point in source pixels, origin top-left.
type Contact struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Event carries the contacts still down after the phase transition, together
// with the size of the surface they were measured on.
type Event struct {
	Phase    Phase
	Contacts []Contact
	Width    float64
	Height   float64
}

// Normalize maps a pixel position to normalized device coordinates with Y up.
func Normalize(x, y, w, h float64) store.Point {
	if w <= 0 || h <= 0 {
		return store.Point{}
	}
	return store.Point{
		X: clampUnit(x/w*2 - 1),
		Y: clampUnit(-(y/h*2 - 1)),
	}
}

// Recognizer folds events into a gesture store.
type Recognizer struct {
	store  *store.Gesture
	logger *slog.Logger
}

// New returns a recognizer writing into g.
func New(g *store.Gesture, l *slog.Logger) *Recognizer {
	return &Recognizer{store: g, logger: logger.OrDiscard(l)}
}

// Handle applies one touch event.
func (r *Recognizer) Handle(ev Event) {
	if ev.Phase == PhaseCancel {
		r.store.SetTouchPositions(nil)
		r.store.SetGestureAnchor(nil)
		return
	}

	points := make([]store.Point, len(ev.Contacts))
	for i, c := range ev.Contacts {
		points[i] = Normalize(c.X, c.Y, ev.Width, ev.Height)
	}
	r.store.SetTouchPositions(points)

	if len(ev.Contacts) < 2 {
		r.store.SetGestureAnchor(nil)
		if len(points) == 1 {
			r.store.SetPointer(points[0])
		}
		return
	}

	a, b := ev.Contacts[0], ev.Contacts[1]
	current := store.Anchor{
		Distance: math.Hypot(b.X-a.X, b.Y-a.Y),
		Angle:    math.Atan2(b.Y-a.Y, b.X-a.X),
	}

	prev := r.store.State().Anchor
	if prev == nil {
		r.store.SetGestureAnchor(&current)
		return
	}

	multiplier := 1.0
	if prev.Distance > 0 {
		multiplier = current.Distance / prev.Distance
	}
	delta := wrapAngle(current.Angle - prev.Angle)

	r.store.UpdateScale(func(s float64) float64 { return s * multiplier })
	r.store.UpdateRotation(func(v float64) float64 { return v + delta })
	r.store.SetGestureAnchor(&current)

	r.logger.Debug("pinch", "multiplier", multiplier, "delta", delta)
}

// Pointer records a single-pointer move measured on a w×h surface.
func (r *Recognizer) Pointer(x, y, w, h float64) {
	r.store.SetPointer(Normalize(x, y, w, h))
}

// Zoom multiplies the scale by factor.
func (r *Recognizer) Zoom(factor float64) {
	r.store.UpdateScale(func(s float64) float64 { return s * factor })
}

// Rotate adds delta radians to the rotation.
func (r *Recognizer) Rotate(delta float64) {
	r.store.UpdateRotation(func(v float64) float64 { return v + delta })
}

// Reset returns the transform to baseline.
func (r *Recognizer) Reset() {
	r.store.Reset()
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
