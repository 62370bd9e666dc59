//go:build sdl

package render

import (
	"errors"
	"fmt"

	"github.com/guidoenr/spectrascape/internal/gesture"
	"github.com/guidoenr/spectrascape/internal/scene"
	"github.com/veandco/go-sdl2/sdl"
)

type sdlState struct {
	initialized bool
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	pixelBuffer []byte
	width       int
	height      int
	pitch       int
	windowTitle string
	fingers     map[sdl.FingerID]gesture.Contact
	order       []sdl.FingerID
}

func (r *Renderer) initSDL(width, height int) error {
	r.mode = backendSDL
	r.useANSI = false
	if r.sdl != nil {
		return nil
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("init SDL video: %w", err)
	}
	r.sdl = &sdlState{
		initialized: true,
		fingers:     make(map[sdl.FingerID]gesture.Contact),
	}
	return nil
}

// ensure creates the window and renderer on first use and reallocates the
// streaming texture whenever the frame size changes.
func (s *sdlState) ensure(width, height int) error {
	if s.window == nil {
		window, err := sdl.CreateWindow("spectrascape",
			sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
			int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_ALLOW_HIGHDPI)
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		s.window = window
	}
	if s.renderer == nil {
		renderer, err := sdl.CreateRenderer(s.window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
		s.renderer = renderer
	}
	if s.texture != nil && s.width == width && s.height == height {
		return nil
	}

	if s.texture != nil {
		_ = s.texture.Destroy()
	}
	_ = s.renderer.SetLogicalSize(int32(width), int32(height))
	tex, err := s.renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_STREAMING, int32(width), int32(height))
	if err != nil {
		s.texture = nil
		return fmt.Errorf("create texture: %w", err)
	}
	s.texture = tex
	s.width, s.height = width, height
	s.pitch = width * 4
	s.pixelBuffer = make([]byte, s.pitch*height)
	return nil
}

// present uploads the pixel buffer and flips the window.
func (s *sdlState) present(title string) error {
	if title != "" && title != s.windowTitle {
		s.window.SetTitle(title)
		s.windowTitle = title
	}
	if err := s.texture.Update(nil, s.pixelBuffer, s.pitch); err != nil {
		return err
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return err
	}
	s.renderer.Present()
	return nil
}

func (r *Renderer) renderSDL(v *scene.View, status string) Frame {
	state := r.sdl
	if state == nil {
		err := errors.New("SDL backend not initialized")
		return Frame{Status: err.Error(), Present: func(string) error { return err }}
	}
	if err := state.ensure(r.width, r.height); err != nil {
		return Frame{Status: "SDL: " + err.Error(), Present: func(string) error { return err }}
	}

	width, pitch := r.width, state.pitch
	t := v.Background().Uniforms().Time
	forRows(r.height, func(y int) {
		row := state.pixelBuffer[y*pitch : (y+1)*pitch]
		for x := 0; x < width; x++ {
			col, _ := r.canvas.shade(v, x, y, t)
			cr, cg, cb := col.Clamped().RGB255()
			px := row[x*4 : x*4+4]
			px[0], px[1], px[2], px[3] = cr, cg, cb, 255
		}
	})

	return Frame{
		Status: status,
		Present: func(status string) error {
			if err := state.present(status); err != nil {
				return err
			}
			return r.pollSDL()
		},
	}
}

// pollSDL drains window events, forwarding mouse motion as pointer input and
// finger events as touch events.
func (r *Renderer) pollSDL() error {
	state := r.sdl
	w, h := float64(state.width), float64(state.height)
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrRendererQuit
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && (e.Keysym.Sym == sdl.K_ESCAPE || e.Keysym.Sym == sdl.K_q) {
				return ErrRendererQuit
			}
		case *sdl.MouseMotionEvent:
			if r.input != nil {
				r.input.Pointer(float64(e.X), float64(e.Y), w, h)
			}
		case *sdl.TouchFingerEvent:
			r.handleFinger(e, w, h)
		}
	}
	return nil
}

func (r *Renderer) handleFinger(e *sdl.TouchFingerEvent, w, h float64) {
	state := r.sdl
	contact := gesture.Contact{ID: int64(e.FingerID), X: float64(e.X) * w, Y: float64(e.Y) * h}

	var phase gesture.Phase
	switch e.Type {
	case sdl.FINGERDOWN:
		phase = gesture.PhaseStart
		if _, ok := state.fingers[e.FingerID]; !ok {
			state.order = append(state.order, e.FingerID)
		}
		state.fingers[e.FingerID] = contact
	case sdl.FINGERMOTION:
		phase = gesture.PhaseMove
		if _, ok := state.fingers[e.FingerID]; !ok {
			return
		}
		state.fingers[e.FingerID] = contact
	case sdl.FINGERUP:
		phase = gesture.PhaseEnd
		delete(state.fingers, e.FingerID)
		for i, id := range state.order {
			if id == e.FingerID {
				state.order = append(state.order[:i], state.order[i+1:]...)
				break
			}
		}
	default:
		return
	}

	if r.input == nil {
		return
	}
	contacts := make([]gesture.Contact, 0, len(state.order))
	for _, id := range state.order {
		contacts = append(contacts, state.fingers[id])
	}
	r.input.Handle(gesture.Event{Phase: phase, Contacts: contacts, Width: w, Height: h})
}

func (r *Renderer) closeSDL() error {
	s := r.sdl
	if s == nil {
		return nil
	}
	r.sdl = nil
	var errs []error
	if s.texture != nil {
		errs = append(errs, s.texture.Destroy())
	}
	if s.renderer != nil {
		errs = append(errs, s.renderer.Destroy())
	}
	if s.window != nil {
		errs = append(errs, s.window.Destroy())
	}
	if s.initialized {
		sdl.QuitSubSystem(sdl.INIT_VIDEO | sdl.INIT_EVENTS)
	}
	return errors.Join(errs...)
}

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return true }
