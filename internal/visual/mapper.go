// Package visual holds the per-frame mappers that turn band aggregates,
// gesture state and elapsed time into vertex, colour and uniform values.
package visual

import (
	"time"

	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/store"
)

// Extent is the half size of the visible z=0 plane in world units.
type Extent struct {
	HalfWidth  float64
	HalfHeight float64
}

// Inputs is everything a mapper may read for one frame.
type Inputs struct {
	Now      time.Time
	Elapsed  float64
	Snapshot *analyzer.Snapshot
	Bands    analyzer.Bands
	Gesture  store.GestureState
	Extent   Extent
}

// NewInputs derives the band aggregates from snap. A nil snapshot yields
// zero bands and reports absence.
func NewInputs(now time.Time, elapsed float64, snap *analyzer.Snapshot, g store.GestureState, ext Extent) Inputs {
	in := Inputs{Now: now, Elapsed: elapsed, Snapshot: snap, Gesture: g, Extent: ext}
	if snap != nil {
		in.Bands = snap.Bands()
	}
	return in
}

// Present reports whether audio data is available this frame.
func (in Inputs) Present() bool { return in.Snapshot != nil }

// Mapper updates its own visual parameters once per frame. Mappers never
// read one another's state.
type Mapper interface {
	Name() string
	Update(in Inputs)
}
