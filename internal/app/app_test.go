package app

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/spectrascape/internal/audio"
	"github.com/guidoenr/spectrascape/internal/config"
	"github.com/guidoenr/spectrascape/internal/logger"
	"github.com/guidoenr/spectrascape/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.Synthetic = true
	cfg.Render.Width = 48
	cfg.Render.Height = 16
	cfg.Scene.SurfaceGrid = 16
	cfg.Scene.ParticleGrid = 8
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, out *bytes.Buffer) *App {
	t.Helper()
	a, err := New(cfg, Options{Logger: logger.NewTestLogger(), Out: out})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.FPS = 0

	_, err := New(cfg, Options{Logger: logger.NewTestLogger(), Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewUsesSynth(t *testing.T) {
	a := newTestApp(t, testConfig(), &bytes.Buffer{})

	_, ok := a.source.(*audio.Synth)
	assert.True(t, ok)
	assert.Equal(t, "synth", a.Status().Source)
	assert.Nil(t, a.web)
	assert.Nil(t, a.prof)
}

func TestKeyEvent(t *testing.T) {
	tests := []struct {
		name string
		char rune
		key  keyboard.Key
		want inputEvent
		ok   bool
	}{
		{"esc", 0, keyboard.KeyEsc, inputEventQuit, true},
		{"ctrl-c", 0, keyboard.KeyCtrlC, inputEventQuit, true},
		{"q", 'q', 0, inputEventQuit, true},
		{"space", 0, keyboard.KeySpace, inputEventTogglePause, true},
		{"reset", 'r', 0, inputEventReset, true},
		{"zoom in", '+', 0, inputEventZoomIn, true},
		{"zoom in unshifted", '=', 0, inputEventZoomIn, true},
		{"zoom out", '-', 0, inputEventZoomOut, true},
		{"rotate left", '[', 0, inputEventRotateLeft, true},
		{"rotate right", ']', 0, inputEventRotateRight, true},
		{"unbound", 'x', 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyEvent(tt.char, tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHandleInputDrivesGestureStore(t *testing.T) {
	a := newTestApp(t, testConfig(), &bytes.Buffer{})

	a.handleInput(inputEventZoomIn)
	a.handleInput(inputEventZoomIn)
	st := a.gestureStore.State()
	assert.InDelta(t, zoomStep*zoomStep, st.Scale, 1e-9)

	a.handleInput(inputEventZoomOut)
	assert.InDelta(t, zoomStep, a.gestureStore.State().Scale, 1e-9)

	a.handleInput(inputEventRotateLeft)
	a.handleInput(inputEventRotateLeft)
	a.handleInput(inputEventRotateRight)
	assert.InDelta(t, rotateStep, a.gestureStore.State().Rotation, 1e-9)

	a.handleInput(inputEventReset)
	st = a.gestureStore.State()
	assert.Equal(t, 1.0, st.Scale)
	assert.Equal(t, 0.0, st.Rotation)
}

func TestHandleInputTogglesPause(t *testing.T) {
	a := newTestApp(t, testConfig(), &bytes.Buffer{})
	require.False(t, a.source.Paused())

	a.handleInput(inputEventTogglePause)
	assert.True(t, a.source.Paused())
	assert.False(t, a.source.Active())

	a.handleInput(inputEventTogglePause)
	assert.False(t, a.source.Paused())
}

func TestRunRendersFrames(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var out bytes.Buffer
	a := newTestApp(t, testConfig(), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	err := a.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "\x1b[?1049h"), "alternate screen entered")
	assert.True(t, strings.HasSuffix(text, "\x1b[?25h\x1b[?1049l\x1b[0m"), "alternate screen left")
	assert.GreaterOrEqual(t, strings.Count(text, "\x1b[H"), 3)
	assert.Contains(t, text, "SPECTRASCAPE")
	assert.Contains(t, text, "src=synth")

	st := a.Status()
	assert.Greater(t, st.Frame, uint64(0))
	assert.Greater(t, st.FPS, 0.0)
	assert.True(t, st.Audio, "synth feeds the analyzer")
	assert.Equal(t, 1.0, st.Scale)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("terminal gone")
}

func TestRunStopsOnPresentError(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	a, err := New(testConfig(), Options{Logger: logger.NewTestLogger(), Out: failingWriter{}})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = a.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal gone")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(testConfig(), Options{Logger: logger.NewTestLogger(), Out: &bytes.Buffer{}})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, a.Status().Audio)
	assert.True(t, a.source.Ended())
}

func TestProfilerWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.csv")
	p := newProfiler(path, logger.NewTestLogger())
	require.NotNil(t, p)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	p.now = func() time.Time {
		at := base.Add(time.Duration(tick) * 2 * time.Millisecond)
		tick++
		return at
	}

	p.beginFrame()
	p.markSection(7, "scene")
	p.markSection(7, "render")
	p.endFrame(7)
	require.NoError(t, p.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "timestamp,frame,section,delta_ms", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",7,scene,2.000"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",7,render,2.000"), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], ",7,frame_total,6.000"), lines[3])
}

func TestNilProfilerIsNoop(t *testing.T) {
	var p *profiler
	p.beginFrame()
	p.markSection(1, "scene")
	p.endFrame(1)
	assert.NoError(t, p.Close())
	assert.Nil(t, newProfiler("", logger.NewTestLogger()))
}

func TestStatusReflectsRotation(t *testing.T) {
	a := newTestApp(t, testConfig(), &bytes.Buffer{})
	a.recognizer.Rotate(math.Pi / 2)
	assert.InDelta(t, math.Pi/2, a.Status().Rotation, 1e-9)
}
