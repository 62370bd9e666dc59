package audio

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

type oscillator struct {
	freq    float64
	amp     float64
	ampMod  float64 // depth of the amplitude wobble, 0..1
	ampModF float64 // wobble rate in Hz
}

// Synth is a deterministic oscillator bank used when no real audio is wanted.
// Samples are rendered lazily, covering the wall-clock time since the last read.
type Synth struct {
	sampleRate float64
	oscs       []oscillator
	point      *tapPoint
	now        func() time.Time

	mu       sync.Mutex
	rng      *rand.Rand
	t        float64 // seconds of signal rendered so far
	lastPull time.Time
	paused   bool
	closed   bool
}

var (
	_ Source = (*Synth)(nil)
	_ Pauser = (*Synth)(nil)
)

// NewSynth creates a synthetic source. A nil clock uses time.Now.
func NewSynth(sampleRate float64, bufferSize int, clock func() time.Time) *Synth {
	if sampleRate <= 0 {
		sampleRate = 44_100
	}
	if clock == nil {
		clock = time.Now
	}
	return &Synth{
		sampleRate: sampleRate,
		point:      newTapPoint(sampleRate, bufferSize),
		now:        clock,
		rng:        rand.New(rand.NewSource(7)),
		oscs: []oscillator{
			{freq: 55, amp: 0.8, ampMod: 0.9, ampModF: 2.1},
			{freq: 80, amp: 0.6, ampMod: 0.8, ampModF: 1.05},
			{freq: 150, amp: 0.4, ampMod: 0.7, ampModF: 3.3},
			{freq: 220, amp: 0.35, ampMod: 0.6, ampModF: 1.7},
			{freq: 440, amp: 0.3, ampMod: 0.8, ampModF: 0.8},
			{freq: 660, amp: 0.25, ampMod: 0.75, ampModF: 0.6},
			{freq: 880, amp: 0.2, ampMod: 0.6, ampModF: 1.5},
			{freq: 1800, amp: 0.1, ampMod: 0.6, ampModF: 3.0},
			{freq: 3600, amp: 0.06, ampMod: 0.4, ampModF: 2.2},
			{freq: 8000, amp: 0.03, ampMod: 0.4, ampModF: 5.5},
		},
	}
}

// Name identifies the source in logs and status output.
func (s *Synth) Name() string { return "synth" }

// Active reports whether the synth is producing output.
func (s *Synth) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.paused && !s.closed
}

// Paused reports whether output is paused.
func (s *Synth) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Ended reports whether the synth has been closed.
func (s *Synth) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TogglePause pauses or resumes output.
func (s *Synth) TogglePause() {
	s.mu.Lock()
	s.paused = !s.paused
	s.lastPull = time.Time{}
	s.mu.Unlock()
}

// Close ends the source.
func (s *Synth) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Tap opens the analysis tap.
func (s *Synth) Tap() (Tap, error) {
	inner, err := s.point.tap()
	if err != nil {
		return nil, err
	}
	return &synthTap{Tap: inner, synth: s}, nil
}

type synthTap struct {
	Tap
	synth *Synth
}

func (t *synthTap) Samples(n int) ([]float32, error) {
	t.synth.pull(n)
	return t.Tap.Samples(n)
}

// pull renders the signal elapsed since the previous pull; the first pull
// after start or resume renders want samples so the tap is never empty.
func (s *Synth) pull(want int) {
	s.mu.Lock()
	if s.paused || s.closed {
		s.mu.Unlock()
		return
	}
	now := s.now()
	count := want
	if !s.lastPull.IsZero() {
		count = int(now.Sub(s.lastPull).Seconds() * s.sampleRate)
	}
	s.lastPull = now
	if limit := len(s.point.buf); count > limit {
		// anything older than the history would be overwritten anyway
		s.t += float64(count-limit) / s.sampleRate
		count = limit
	}
	samples := s.render(count)
	s.mu.Unlock()

	s.point.feed(samples)
}

func (s *Synth) render(count int) []float32 {
	out := make([]float32, count)
	dt := 1.0 / s.sampleRate
	for i := range out {
		t := s.t + float64(i)*dt
		sample := 0.0
		for _, o := range s.oscs {
			amp := o.amp * (1 - o.ampMod + o.ampMod*math.Abs(math.Sin(2*math.Pi*o.ampModF*t)))
			sample += amp * math.Sin(2*math.Pi*o.freq*t)
		}
		sample += (s.rng.Float64()*2 - 1) * 0.01
		out[i] = float32(sample * 0.3)
	}
	s.t += float64(count) * dt
	return out
}
