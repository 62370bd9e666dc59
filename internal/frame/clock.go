// Package frame drives per-frame callbacks from a single refresh loop.
package frame

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/guidoenr/spectrascape/internal/logger"
)

// Viewport describes the current drawing surface in pixels or cells.
type Viewport struct {
	Width  int
	Height int
}

// Aspect returns width/height, or 1 for an empty viewport.
func (v Viewport) Aspect() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 1
	}
	return float64(v.Width) / float64(v.Height)
}

// Context is handed to every callback of one frame.
type Context struct {
	Frame    uint64
	Now      time.Time
	Elapsed  float64 // seconds since the first frame
	Delta    float64 // seconds since the previous frame
	Viewport Viewport
}

// Callback runs once per frame.
type Callback func(Context)

type registration struct {
	id   uint64
	name string
	fn   Callback
}

// Clock invokes registered callbacks in registration order, synchronously,
// once per frame. Callbacks never run concurrently with each other.
type Clock struct {
	fps    float64
	logger *slog.Logger

	mu       sync.Mutex
	regs     []registration
	nextID   uint64
	viewport Viewport

	// step state, only touched from Step
	frame   uint64
	started time.Time
	last    time.Time
}

// NewClock creates a clock targeting fps frames per second.
func NewClock(fps float64, l *slog.Logger) *Clock {
	if fps <= 0 {
		fps = 60
	}
	return &Clock{
		fps:    fps,
		logger: logger.OrDiscard(l),
	}
}

// FPS returns the target frame rate.
func (c *Clock) FPS() float64 { return c.fps }

// SetViewport updates the viewport reported to callbacks.
func (c *Clock) SetViewport(width, height int) {
	c.mu.Lock()
	c.viewport = Viewport{Width: width, Height: height}
	c.mu.Unlock()
}

// Register adds fn to the frame loop. The returned cancel function removes
// it; calling cancel more than once is harmless.
func (c *Clock) Register(name string, fn Callback) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.regs = append(c.regs, registration{id: id, name: name, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, r := range c.regs {
				if r.id == id {
					c.regs = append(c.regs[:i:i], c.regs[i+1:]...)
					return
				}
			}
		})
	}
}

// Registered returns the number of active callbacks.
func (c *Clock) Registered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.regs)
}

// Step runs a single frame at the given instant.
func (c *Clock) Step(now time.Time) {
	if c.frame == 0 {
		c.started = now
		c.last = now.Add(-c.frameDuration())
	}
	delta := now.Sub(c.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / c.fps
	}
	c.last = now
	c.frame++

	c.mu.Lock()
	regs := make([]registration, len(c.regs))
	copy(regs, c.regs)
	viewport := c.viewport
	c.mu.Unlock()

	ctx := Context{
		Frame:    c.frame,
		Now:      now,
		Elapsed:  now.Sub(c.started).Seconds(),
		Delta:    delta,
		Viewport: viewport,
	}
	for _, r := range regs {
		c.invoke(r, ctx)
	}
}

// Run drives Step from a ticker until ctx is done.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.frameDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			c.Step(now)
		}
	}
}

func (c *Clock) frameDuration() time.Duration {
	return time.Duration(float64(time.Second) / c.fps)
}

// invoke calls a callback and recovers from panics so one broken callback
// cannot stall the rest of the frame loop.
func (c *Clock) invoke(r registration, ctx Context) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("frame callback panicked",
				slog.String("callback", r.name),
				slog.Uint64("frame", ctx.Frame),
				slog.Any("panic", rec))
		}
	}()
	r.fn(ctx)
}
