package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu   sync.Mutex
	paRefs int
)

// Initialize starts PortAudio. Calls are reference counted; each successful
// Initialize must be balanced by Terminate.
func Initialize() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	paRefs++
	return nil
}

// Terminate releases one Initialize reference and shuts PortAudio down with
// the last one.
func Terminate() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}
