// Package app wires audio, analysis, gesture input, the scene and a renderer
// into one frame loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/audio"
	"github.com/guidoenr/spectrascape/internal/config"
	"github.com/guidoenr/spectrascape/internal/frame"
	"github.com/guidoenr/spectrascape/internal/gesture"
	"github.com/guidoenr/spectrascape/internal/logger"
	"github.com/guidoenr/spectrascape/internal/render"
	"github.com/guidoenr/spectrascape/internal/scene"
	"github.com/guidoenr/spectrascape/internal/store"
	"github.com/guidoenr/spectrascape/internal/visual"
	"github.com/guidoenr/spectrascape/internal/web"
	"golang.org/x/term"
)

const (
	zoomStep   = 1.1
	rotateStep = math.Pi / 24

	defaultTermWidth  = 80
	defaultTermHeight = 24
	defaultWinWidth   = 960
	defaultWinHeight  = 540
)

// Options carries process-level settings that are not part of the config file.
type Options struct {
	Logger      *slog.Logger
	Out         io.Writer
	Keyboard    bool
	ProfilePath string
}

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventReset
	inputEventZoomIn
	inputEventZoomOut
	inputEventRotateLeft
	inputEventRotateRight
	inputEventTogglePause
)

// App ties together audio capture, analysis, gesture input and rendering.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	audioStore   *store.Audio
	gestureStore *store.Gesture
	recognizer   *gesture.Recognizer
	clock        *frame.Clock
	bridge       *analyzer.Bridge
	scene        *scene.Scene
	renderer     *render.Renderer
	web          *web.Server
	prof         *profiler

	source      audio.Source
	portaudioUp bool

	autoSize    bool
	inputEvents chan inputEvent
	stop        chan error

	mu        sync.Mutex
	fps       float64
	lastFrame uint64
}

// New builds the pipeline described by cfg. The audio source is opened and
// connected but no frame runs until Run.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := logger.OrDiscard(opts.Logger)
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	a := &App{
		cfg:          cfg,
		opts:         opts,
		logger:       l,
		audioStore:   store.NewAudio(),
		gestureStore: store.NewGesture(),
		stop:         make(chan error, 1),
	}
	a.recognizer = gesture.New(a.gestureStore, l.With("component", "gesture"))

	width, height := cfg.Render.Width, cfg.Render.Height
	windowed := strings.EqualFold(cfg.Render.Backend, "sdl")
	if width <= 0 || height <= 0 {
		if windowed {
			width, height = defaultWinWidth, defaultWinHeight
		} else {
			a.autoSize = true
			width, height = a.terminalSize()
		}
	}
	renderer, err := render.New(render.Options{
		Width:   width,
		Height:  height,
		Backend: cfg.Render.Backend,
		Palette: cfg.Render.Palette,
		Color:   cfg.Render.Color,
		Status:  cfg.Render.Status,
		Out:     opts.Out,
		Input:   a.recognizer,
	})
	if err != nil {
		return nil, err
	}
	a.renderer = renderer

	a.clock = frame.NewClock(cfg.FPS, l.With("component", "frame"))
	vp := renderer.Viewport()
	a.clock.SetViewport(vp.Width, vp.Height)

	policy := visual.Policy{Grace: cfg.Decay.Grace, Factor: cfg.Decay.Factor}
	a.scene = scene.New(a.audioStore, a.gestureStore, scene.Options{
		SurfaceGrid:    cfg.Scene.SurfaceGrid,
		ParticleGrid:   cfg.Scene.ParticleGrid,
		ParticleSeed:   cfg.Scene.ParticleSeed,
		FPS:            cfg.FPS,
		CameraDistance: cfg.Scene.CameraDistance,
		FOV:            cfg.Scene.FOV,
		Policy:         policy,
	})

	a.bridge = analyzer.NewBridge(a.audioStore, analyzer.SpectrumConfig{
		FFTSize:     cfg.Audio.FFTSize,
		Smoothing:   cfg.Audio.Smoothing,
		MinDecibels: cfg.Audio.MinDecibels,
		MaxDecibels: cfg.Audio.MaxDecibels,
	}, l.With("component", "analyzer"))

	src, err := a.openSource()
	if err != nil {
		_ = renderer.Close()
		a.releasePortAudio()
		return nil, err
	}
	a.source = src
	a.bridge.Connect(src)

	if cfg.Web.Enabled {
		a.web = web.NewServer(cfg.Web.Addr, a, a.recognizer, l)
	}
	a.prof = newProfiler(opts.ProfilePath, l)
	return a, nil
}

// openSource picks the configured source: a file, the synthesizer, or live
// capture. Live capture that cannot open falls back to the synthesizer.
func (a *App) openSource() (audio.Source, error) {
	cfg := a.cfg.Audio
	switch {
	case cfg.File != "":
		fs, err := audio.OpenFile(cfg.File, cfg.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("open audio file: %w", err)
		}
		fs.Play()
		a.logger.Info("playing file", "source", fs.Name())
		return fs, nil
	case cfg.Synthetic:
		a.logger.Info("audio disabled, using synthetic generator")
		return a.newSynth(), nil
	}

	if err := audio.Initialize(); err != nil {
		a.logger.Warn("portaudio unavailable, using synthetic generator", "error", err)
		return a.newSynth(), nil
	}
	a.portaudioUp = true

	capture, err := audio.NewCapture(audio.Config{
		DeviceName: cfg.Device,
		BufferSize: cfg.BufferSize,
		Channels:   2,
	})
	if err != nil {
		a.logger.Warn("audio capture failed, using synthetic generator", "error", err)
		a.releasePortAudio()
		return a.newSynth(), nil
	}
	a.logger.Info("audio capture started", "device", capture.Name(), "sample_rate", capture.SampleRate())
	return capture, nil
}

func (a *App) newSynth() *audio.Synth {
	return audio.NewSynth(a.cfg.Audio.SampleRate, a.cfg.Audio.BufferSize, nil)
}

func (a *App) releasePortAudio() {
	if a.portaudioUp {
		audio.Terminate()
		a.portaudioUp = false
	}
}

// Run drives frames until ctx ends, the user quits, or presenting fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := !a.renderer.Windowed()
	if terminal {
		a.enterScreen()
		defer a.exitScreen()
	}

	a.bridge.Start(a.clock)
	unregister := []func(){
		a.clock.Register("scene", a.sceneFrame),
		a.clock.Register("render", a.renderFrame),
	}
	defer func() {
		for _, fn := range unregister {
			fn()
		}
	}()

	var wg sync.WaitGroup
	if a.web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.web.Run(ctx); err != nil {
				a.logger.Error("web server stopped", "error", err)
			}
		}()
	}

	if a.opts.Keyboard {
		a.startInputListener(ctx)
	}

	clockErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		clockErr <- a.clock.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-a.stop:
			cancel()
			return err
		case err := <-clockErr:
			return err
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt == inputEventQuit {
				cancel()
				return nil
			}
			a.handleInput(evt)
		}
	}
}

// Close releases held resources.
func (a *App) Close() error {
	errs := []error{a.bridge.Close()}
	if c, ok := a.source.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.renderer.Close(), a.prof.Close())
	a.releasePortAudio()
	return errors.Join(errs...)
}

func (a *App) sceneFrame(fc frame.Context) {
	a.prof.beginFrame()
	a.scene.Update(fc)
	a.prof.markSection(fc.Frame, "scene")
}

func (a *App) renderFrame(fc frame.Context) {
	a.ensureDimensions()

	fps := 0.0
	if fc.Delta > 0 {
		fps = 1 / fc.Delta
	}
	a.mu.Lock()
	a.fps = fps
	a.lastFrame = fc.Frame
	a.mu.Unlock()

	st := a.Status()
	out := a.renderer.Render(a.scene, render.Info{
		Source:   st.Source,
		Audio:    st.Audio,
		Bands:    st.Bands,
		Scale:    st.Scale,
		Rotation: st.Rotation,
		FPS:      fps,
	})
	a.prof.markSection(fc.Frame, "render")

	if out.Present != nil {
		if err := out.Present(out.Status); err != nil {
			if errors.Is(err, render.ErrRendererQuit) {
				err = nil
			}
			a.requestStop(err)
		}
	}
	a.prof.markSection(fc.Frame, "present")
	a.prof.endFrame(fc.Frame)
}

func (a *App) requestStop(err error) {
	select {
	case a.stop <- err:
	default:
	}
}

// Status reports the pipeline state for the status line and web clients.
func (a *App) Status() web.Status {
	snap := a.audioStore.Get()
	g := a.gestureStore.State()

	st := web.Status{
		Scale:    g.Scale,
		Rotation: g.Rotation,
		Audio:    snap != nil,
	}
	if snap != nil {
		st.Bands = snap.Bands()
	}
	if src := a.bridge.Source(); src != nil {
		st.Source = src.Name()
	}
	a.mu.Lock()
	st.FPS = a.fps
	st.Frame = a.lastFrame
	a.mu.Unlock()
	return st
}

func (a *App) handleInput(evt inputEvent) {
	switch evt {
	case inputEventReset:
		a.recognizer.Reset()
	case inputEventZoomIn:
		a.recognizer.Zoom(zoomStep)
	case inputEventZoomOut:
		a.recognizer.Zoom(1 / zoomStep)
	case inputEventRotateLeft:
		a.recognizer.Rotate(rotateStep)
	case inputEventRotateRight:
		a.recognizer.Rotate(-rotateStep)
	case inputEventTogglePause:
		if p, ok := a.source.(audio.Pauser); ok {
			p.TogglePause()
			a.logger.Info("toggled playback", "source", a.source.Name(), "paused", a.source.Paused())
		}
	}
}

func keyEvent(char rune, key keyboard.Key) (inputEvent, bool) {
	switch {
	case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
		return inputEventQuit, true
	case key == keyboard.KeySpace || char == ' ':
		return inputEventTogglePause, true
	}
	switch char {
	case 'q', 'Q':
		return inputEventQuit, true
	case 'r', 'R':
		return inputEventReset, true
	case '+', '=':
		return inputEventZoomIn, true
	case '-', '_':
		return inputEventZoomOut, true
	case '[':
		return inputEventRotateLeft, true
	case ']':
		return inputEventRotateRight, true
	}
	return 0, false
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.logger.Warn("keyboard input disabled", "error", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			evt, ok := keyEvent(char, key)
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func (a *App) terminalSize() (int, int) {
	fd := int(os.Stdout.Fd())
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return defaultTermWidth, defaultTermHeight
	}
	if a.cfg.Render.Status && h > 1 {
		h--
	}
	return w, h
}

func (a *App) ensureDimensions() {
	if !a.autoSize {
		return
	}
	w, h := a.terminalSize()
	if cw, ch := a.renderer.Size(); cw == w && ch == h {
		return
	}
	a.renderer.Resize(w, h)
	vp := a.renderer.Viewport()
	a.clock.SetViewport(vp.Width, vp.Height)
}

func (a *App) enterScreen() {
	fmt.Fprint(a.opts.Out, "\x1b[?1049h\x1b[2J\x1b[H\x1b[?25l")
}

func (a *App) exitScreen() {
	fmt.Fprint(a.opts.Out, "\x1b[?25h\x1b[?1049l\x1b[0m")
}
