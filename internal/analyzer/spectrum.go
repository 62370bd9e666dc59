package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"
)

// SpectrumConfig mirrors the knobs of a browser analyser node.
type SpectrumConfig struct {
	FFTSize     int
	Smoothing   float64 // time constant in [0,1)
	MinDecibels float64
	MaxDecibels float64
}

// DefaultSpectrumConfig returns a 256 point transform yielding 128 bins.
func DefaultSpectrumConfig() SpectrumConfig {
	return SpectrumConfig{
		FFTSize:     256,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Spectrum turns time-domain samples into byte magnitudes per frequency bin.
// It keeps a smoothing accumulator across calls and is not safe for
// concurrent use.
type Spectrum struct {
	cfg      SpectrumConfig
	window   []float64
	buffer   []float64
	smoothed []float64
	out      []uint8
}

// NewSpectrum creates a Spectrum, normalizing invalid configuration.
func NewSpectrum(cfg SpectrumConfig) *Spectrum {
	def := DefaultSpectrumConfig()
	if cfg.FFTSize < 32 {
		cfg.FFTSize = def.FFTSize
	}
	cfg.FFTSize = nextPow2(cfg.FFTSize)
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = def.Smoothing
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels = def.MinDecibels
		cfg.MaxDecibels = def.MaxDecibels
	}

	win := make([]float64, cfg.FFTSize)
	for i := range win {
		win[i] = 1
	}
	window.Blackman(win)

	return &Spectrum{
		cfg:      cfg,
		window:   win,
		buffer:   make([]float64, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
		out:      make([]uint8, cfg.FFTSize/2),
	}
}

// Size returns the transform size.
func (s *Spectrum) Size() int { return s.cfg.FFTSize }

// Bins returns the number of frequency bins produced per frame.
func (s *Spectrum) Bins() int { return s.cfg.FFTSize / 2 }

// Reset clears the smoothing accumulator.
func (s *Spectrum) Reset() {
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
}

// Process analyzes the most recent FFTSize samples and returns the byte
// spectrum. The returned slice is reused by the next call.
func (s *Spectrum) Process(samples []float32) []uint8 {
	size := s.cfg.FFTSize
	offset := size - len(samples)
	for i := 0; i < size; i++ {
		src := i - offset
		if src < 0 || src >= len(samples) {
			s.buffer[i] = 0
			continue
		}
		s.buffer[i] = float64(samples[src]) * s.window[i]
	}

	res := fft.FFTReal(s.buffer)

	tau := s.cfg.Smoothing
	dbRange := s.cfg.MaxDecibels - s.cfg.MinDecibels
	for k := range s.smoothed {
		mag := cmag(res[k]) / float64(size)
		s.smoothed[k] = tau*s.smoothed[k] + (1-tau)*mag
		db := toDecibels(s.smoothed[k])
		scaled := 255 * (db - s.cfg.MinDecibels) / dbRange
		s.out[k] = uint8(clamp(math.Floor(scaled), 0, 255))
	}
	return s.out
}

func toDecibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}

func cmag(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
