package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/guidoenr/spectrascape/internal/analyzer"
	"github.com/guidoenr/spectrascape/internal/frame"
	"github.com/guidoenr/spectrascape/internal/gesture"
	"github.com/guidoenr/spectrascape/internal/scene"
)

// ErrRendererQuit is returned by Present when the user closed the output.
var ErrRendererQuit = errors.New("renderer quit")

type backendMode string

const (
	backendTerminal backendMode = "terminal"
	backendSDL      backendMode = "sdl"
)

// Input receives pointer and touch events from windowed backends.
type Input interface {
	Pointer(x, y, w, h float64)
	Handle(ev gesture.Event)
}

// Options configures a Renderer.
type Options struct {
	Width   int
	Height  int
	Backend string
	Palette string
	Color   bool
	Status  bool
	Out     io.Writer
	Input   Input
}

// Info is the status line content for one frame.
type Info struct {
	Source   string
	Audio    bool
	Bands    analyzer.Bands
	Scale    float64
	Rotation float64
	FPS      float64
}

// Frame is one rendered image. Present pushes it to the output.
type Frame struct {
	Lines   []string
	Status  string
	Present func(status string) error
}

// Renderer rasterizes a scene into terminal cells or an SDL texture.
type Renderer struct {
	width         int
	height        int
	mode          backendMode
	palette       []rune
	paletteName   string
	useANSI       bool
	showStatus    bool
	out           io.Writer
	input         Input
	canvas        canvas
	statusBuilder strings.Builder
	sdl           *sdlState
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", opts.Width, opts.Height)
	}
	palette, ok := Palette(opts.Palette)
	if !ok {
		return nil, fmt.Errorf("unknown palette %q (have %s)", opts.Palette, strings.Join(PaletteNames(), ", "))
	}
	name := strings.ToLower(opts.Palette)
	if name == "" {
		name = "default"
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	r := &Renderer{
		width:       opts.Width,
		height:      opts.Height,
		mode:        backendTerminal,
		palette:     palette,
		paletteName: name,
		useANSI:     opts.Color,
		showStatus:  opts.Status,
		out:         out,
		input:       opts.Input,
	}
	if strings.EqualFold(opts.Backend, string(backendSDL)) {
		if err := r.initSDL(opts.Width, opts.Height); err != nil {
			return nil, fmt.Errorf("sdl backend: %w", err)
		}
	}
	return r, nil
}

// Resize updates the framebuffer dimensions. Windowed backends keep their
// own size.
func (r *Renderer) Resize(width, height int) {
	if r.mode != backendTerminal || width <= 0 || height <= 0 {
		return
	}
	r.width = width
	r.height = height
}

// Size returns the framebuffer size in cells or pixels.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Viewport is the drawing surface in square units. Terminal cells are about
// twice as tall as they are wide.
func (r *Renderer) Viewport() frame.Viewport {
	if r.mode == backendTerminal {
		return frame.Viewport{Width: r.width, Height: r.height * 2}
	}
	return frame.Viewport{Width: r.width, Height: r.height}
}

func (r *Renderer) PaletteName() string { return r.paletteName }
func (r *Renderer) Windowed() bool      { return r.mode == backendSDL }

// Close releases backend resources.
func (r *Renderer) Close() error {
	return r.closeSDL()
}

// Render draws the current state of sc.
func (r *Renderer) Render(sc *scene.Scene, info Info) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}
	status := r.buildStatus(info)

	var f Frame
	sc.View(func(v *scene.View) {
		r.canvas.reset(r.width, r.height)
		r.canvas.scatter(v)
		if r.mode == backendSDL {
			f = r.renderSDL(v, status)
			return
		}
		f = r.renderTerminal(v, status)
	})
	return f
}

func (r *Renderer) renderTerminal(v *scene.View, status string) Frame {
	width := r.width
	height := r.height
	useANSI := r.useANSI
	palette := r.palette
	t := v.Background().Uniforms().Time
	lines := make([]string, height)

	forRows(height, func(y int) {
		var builder strings.Builder
		builder.Grow(width * 8)
		lastColor := -1
		for x := 0; x < width; x++ {
			col, level := r.canvas.shade(v, x, y, t)
			index := clampInt(int(level*float64(len(palette)-1)+0.5), 0, len(palette)-1)
			if useANSI {
				fg := rgbToANSI(col.R, col.G, col.B)
				if fg != lastColor {
					builder.WriteString(colorCode(fg))
					lastColor = fg
				}
			}
			builder.WriteRune(palette[index])
		}
		if useANSI {
			builder.WriteString(resetANSI)
		}
		lines[y] = builder.String()
	})

	return Frame{
		Lines:  lines,
		Status: status,
		Present: func(status string) error {
			return r.writeTerminal(lines, status)
		},
	}
}

func (r *Renderer) writeTerminal(lines []string, status string) error {
	var b strings.Builder
	b.WriteString("\x1b[H")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if r.showStatus {
		b.WriteString(statusBar(status, r.width))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) buildStatus(info Info) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(128)
	builder.WriteString("SPECTRASCAPE | src=")
	if info.Source == "" {
		builder.WriteString("none")
	} else {
		builder.WriteString(info.Source)
	}
	if info.Audio {
		builder.WriteString(" audio=on")
	} else {
		builder.WriteString(" audio=off")
	}
	builder.WriteString(" | low ")
	appendFloat(builder, info.Bands.Low, 2)
	builder.WriteString(" mid ")
	appendFloat(builder, info.Bands.Mid, 2)
	builder.WriteString(" high ")
	appendFloat(builder, info.Bands.High, 2)
	builder.WriteString(" | zoom ")
	appendFloat(builder, info.Scale, 2)
	builder.WriteString(" rot ")
	appendFloat(builder, info.Rotation*180/math.Pi, 0)
	builder.WriteString("° | fps ")
	appendFloat(builder, info.FPS, 1)
	return builder.String()
}

func statusBar(text string, width int) string {
	runes := []rune(text)
	if width <= 0 {
		return text
	}
	if len(runes) >= width {
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for near-neutral colours
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
