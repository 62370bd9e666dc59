package audio

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyTapped is returned by Source.Tap while another tap on the same
	// source is still open.
	ErrAlreadyTapped = errors.New("audio: source already tapped")
	// ErrTapClosed is returned when reading from a released tap.
	ErrTapClosed = errors.New("audio: tap closed")
	// ErrNoDevice is returned when no usable input device exists.
	ErrNoDevice = errors.New("audio: no suitable input device")
)

// Source is a playable audio handle the analyzer can listen to.
type Source interface {
	Name() string
	// Active reports whether the source is currently producing audible output.
	Active() bool
	Paused() bool
	Ended() bool
	// Tap opens the single analysis tap on the source's output.
	Tap() (Tap, error)
}

// Tap exposes the most recent output of a Source as mono samples.
type Tap interface {
	// Samples returns the latest n mono samples, oldest first. Missing history
	// is zero filled at the front.
	Samples(n int) ([]float32, error)
	SampleRate() float64
	Close() error
}

// Pauser is implemented by sources whose playback can be toggled.
type Pauser interface {
	TogglePause()
}

// tapPoint owns the mono history of a source and hands out at most one tap.
type tapPoint struct {
	mu         sync.Mutex
	sampleRate float64
	buf        []float32
	pos        int
	filled     int
	open       *ringTap
}

func newTapPoint(sampleRate float64, size int) *tapPoint {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &tapPoint{
		sampleRate: sampleRate,
		buf:        make([]float32, size),
	}
}

// feed appends mono samples, overwriting the oldest history.
func (p *tapPoint) feed(in []float32) {
	if len(in) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	size := len(p.buf)
	if len(in) >= size {
		copy(p.buf, in[len(in)-size:])
		p.pos = 0
		p.filled = size
		return
	}
	n := copy(p.buf[p.pos:], in)
	if n < len(in) {
		copy(p.buf, in[n:])
	}
	p.pos = (p.pos + len(in)) % size
	p.filled += len(in)
	if p.filled > size {
		p.filled = size
	}
}

// clear forgets the history, e.g. after a seek or restart.
func (p *tapPoint) clear() {
	p.mu.Lock()
	p.pos = 0
	p.filled = 0
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.mu.Unlock()
}

func (p *tapPoint) tap() (Tap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open != nil {
		return nil, ErrAlreadyTapped
	}
	t := &ringTap{point: p}
	p.open = t
	return t, nil
}

func (p *tapPoint) tapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open != nil
}

type ringTap struct {
	point  *tapPoint
	closed bool // guarded by point.mu
}

func (t *ringTap) Samples(n int) ([]float32, error) {
	p := t.point
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.closed {
		return nil, ErrTapClosed
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]float32, n)
	size := len(p.buf)
	avail := p.filled
	if avail > n {
		avail = n
	}
	start := (p.pos - avail + size) % size
	offset := n - avail
	for i := 0; i < avail; i++ {
		out[offset+i] = p.buf[(start+i)%size]
	}
	return out, nil
}

func (t *ringTap) SampleRate() float64 { return t.point.sampleRate }

func (t *ringTap) Close() error {
	p := t.point
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if p.open == t {
		p.open = nil
	}
	return nil
}

// downmix averages interleaved frames into mono.
func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	mono := make([]float32, len(in)/channels)
	for i := range mono {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
