package store

import (
	"math"
	"sync"
)

// Point is a position in normalized device coordinates, both axes in [-1,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Anchor is the pinch reference captured when a second touch lands.
type Anchor struct {
	Distance float64 `json:"distance"`
	Angle    float64 `json:"angle"`
}

// GestureState is a copy of the gesture transform.
type GestureState struct {
	Touches  []Point `json:"touches"`
	Pointer  Point   `json:"pointer"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Anchor   *Anchor `json:"anchor,omitempty"`
}

// Gesture holds the pointer/touch transform. Setters are the only way to
// mutate it and are safe to call from input goroutines while frames read.
type Gesture struct {
	mu    sync.RWMutex
	state GestureState
}

// NewGesture returns a store at baseline: scale 1, rotation 0, no anchor.
func NewGesture() *Gesture {
	return &Gesture{state: GestureState{Scale: 1}}
}

// State returns a deep copy of the current state.
func (g *Gesture) State() GestureState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := g.state
	out.Touches = append([]Point(nil), g.state.Touches...)
	if g.state.Anchor != nil {
		a := *g.state.Anchor
		out.Anchor = &a
	}
	return out
}

// SetTouchPositions replaces the active touch positions.
func (g *Gesture) SetTouchPositions(points []Point) {
	cp := append([]Point(nil), points...)
	g.mu.Lock()
	g.state.Touches = cp
	g.mu.Unlock()
}

// SetPointer records the single-pointer position.
func (g *Gesture) SetPointer(p Point) {
	g.mu.Lock()
	g.state.Pointer = p
	g.mu.Unlock()
}

// SetScale sets an absolute scale.
func (g *Gesture) SetScale(v float64) {
	g.UpdateScale(func(float64) float64 { return v })
}

// UpdateScale applies fn to the previous scale while holding the lock.
// Results that are not finite and strictly positive are dropped.
func (g *Gesture) UpdateScale(fn func(prev float64) float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := fn(g.state.Scale)
	if next <= 0 || math.IsNaN(next) || math.IsInf(next, 0) {
		return
	}
	g.state.Scale = next
}

// SetRotation sets an absolute rotation in radians.
func (g *Gesture) SetRotation(v float64) {
	g.UpdateRotation(func(float64) float64 { return v })
}

// UpdateRotation applies fn to the previous rotation while holding the lock.
// Non-finite results are dropped.
func (g *Gesture) UpdateRotation(fn func(prev float64) float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := fn(g.state.Rotation)
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return
	}
	g.state.Rotation = next
}

// SetGestureAnchor stores or clears (nil) the pinch anchor.
func (g *Gesture) SetGestureAnchor(a *Anchor) {
	var cp *Anchor
	if a != nil {
		v := *a
		cp = &v
	}
	g.mu.Lock()
	g.state.Anchor = cp
	g.mu.Unlock()
}

// Reset returns scale and rotation to baseline and drops the anchor.
// Touch and pointer positions are kept.
func (g *Gesture) Reset() {
	g.mu.Lock()
	g.state.Scale = 1
	g.state.Rotation = 0
	g.state.Anchor = nil
	g.mu.Unlock()
}
