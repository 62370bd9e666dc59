package analyzer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/guidoenr/spectrascape/internal/audio"
	"github.com/guidoenr/spectrascape/internal/frame"
	"github.com/guidoenr/spectrascape/internal/logger"
)

// Publisher receives the latest snapshot, or nil when no audio is available.
type Publisher interface {
	Set(*Snapshot)
}

// Registrar schedules per-frame callbacks.
type Registrar interface {
	Register(name string, fn frame.Callback) (cancel func())
}

// Bridge samples a connected audio source once per frame and publishes the
// resulting spectrum. It holds at most one tap at a time.
type Bridge struct {
	out    Publisher
	cfg    SpectrumConfig
	logger *slog.Logger

	mu       sync.Mutex
	spectrum *Spectrum
	src      audio.Source
	tap      audio.Tap
	cancel   func()
	wasLive  bool
	closed   bool
}

// NewBridge creates an unconnected bridge publishing into out.
func NewBridge(out Publisher, cfg SpectrumConfig, l *slog.Logger) *Bridge {
	return &Bridge{
		out:      out,
		cfg:      cfg,
		logger:   logger.OrDiscard(l),
		spectrum: NewSpectrum(cfg),
	}
}

// Connect attaches src. Connecting the already connected source is a no-op;
// connecting a different one releases the previous tap first. A tap failure
// is logged and leaves the bridge unconnected.
func (b *Bridge) Connect(src audio.Source) {
	if src == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Warn("connect after close ignored", slog.String("source", src.Name()))
		return
	}
	if b.tap != nil && b.src == src {
		return
	}
	b.releaseTapLocked()

	tap, err := src.Tap()
	if err != nil {
		b.logger.Error("audio tap failed, staying disconnected",
			slog.String("source", src.Name()),
			slog.Any("error", err))
		return
	}
	b.src = src
	b.tap = tap
	b.spectrum.Reset()
	b.logger.Info("audio analysis connected",
		slog.String("source", src.Name()),
		slog.Float64("sample_rate", tap.SampleRate()),
		slog.Int("bins", b.spectrum.Bins()))
}

// Disconnect releases the current tap, if any.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	b.releaseTapLocked()
	b.mu.Unlock()
	b.out.Set(nil)
}

// Connected reports whether a tap is held.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tap != nil
}

// Source returns the connected source or nil.
func (b *Bridge) Source() audio.Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.src
}

// Start registers the sampling callback on the frame clock.
func (b *Bridge) Start(clock Registrar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.cancel != nil {
		return
	}
	b.cancel = clock.Register("analyzer", b.Tick)
}

// Tick captures one snapshot. It publishes nil when nothing is connected,
// the source is silent, or the tap cannot be read this frame.
func (b *Bridge) Tick(fc frame.Context) {
	b.out.Set(b.sample(fc))
}

func (b *Bridge) sample(fc frame.Context) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tap == nil || b.spectrum == nil {
		return nil
	}
	if !b.src.Active() {
		if b.wasLive {
			b.spectrum.Reset()
			b.wasLive = false
		}
		return nil
	}

	samples, err := b.tap.Samples(b.spectrum.Size())
	if err != nil {
		if !errors.Is(err, audio.ErrTapClosed) {
			b.logger.Debug("audio sample skipped", slog.Any("error", err))
		}
		return nil
	}
	b.wasLive = true
	return NewSnapshot(b.spectrum.Process(samples), fc.Now)
}

// Close stops the sampling callback, releases the tap and the analysis
// state, and publishes absence. Safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	err := b.releaseTapLocked()
	b.spectrum = nil
	b.mu.Unlock()

	b.out.Set(nil)
	b.logger.Debug("audio analysis closed")
	return err
}

func (b *Bridge) releaseTapLocked() error {
	if b.tap == nil {
		return nil
	}
	err := b.tap.Close()
	if err != nil {
		b.logger.Warn("closing audio tap", slog.Any("error", err))
	}
	b.tap = nil
	b.src = nil
	b.wasLive = false
	return err
}
