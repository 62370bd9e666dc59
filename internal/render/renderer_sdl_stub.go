//go:build !sdl

package render

import (
	"errors"

	"github.com/guidoenr/spectrascape/internal/scene"
)

type sdlState struct{}

func (r *Renderer) initSDL(width, height int) error {
	return errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

func (r *Renderer) renderSDL(v *scene.View, status string) Frame {
	return Frame{
		Status: "SDL backend unavailable (build without -tags sdl)",
		Present: func(string) error {
			return ErrRendererQuit
		},
	}
}

func (r *Renderer) closeSDL() error { return nil }

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return false }
