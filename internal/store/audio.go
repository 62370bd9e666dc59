// Package store holds the shared latest-value state read by every frame:
// the current audio snapshot and the gesture transform.
package store

import (
	"sync/atomic"

	"github.com/guidoenr/spectrascape/internal/analyzer"
)

// Audio is a single slot holding the freshest snapshot, or nil when no audio
// is available. Writes replace the slot atomically; readers never block and
// never observe a partial snapshot.
type Audio struct {
	current atomic.Pointer[analyzer.Snapshot]
	writes  atomic.Uint64
}

// NewAudio returns a store holding absence.
func NewAudio() *Audio {
	return &Audio{}
}

// Set overwrites the slot. Passing nil records absence.
func (a *Audio) Set(s *analyzer.Snapshot) {
	a.current.Store(s)
	a.writes.Add(1)
}

// Get returns the current snapshot or nil.
func (a *Audio) Get() *analyzer.Snapshot {
	return a.current.Load()
}

// Version counts Set calls.
func (a *Audio) Version() uint64 {
	return a.writes.Load()
}
