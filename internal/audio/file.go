package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

const (
	outputChannels = 2
	bytesPerFrame  = outputChannels * 2 // 16-bit stereo
)

var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

// outputContext returns the process-wide oto context, creating it for the
// first file's sample rate. oto allows a single context per process.
func outputContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if otoRate != sampleRate {
			return nil, fmt.Errorf("output already running at %d Hz, file is %d Hz", otoRate, sampleRate)
		}
		return otoCtx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: outputChannels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	<-ready
	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

// FileSource plays an MP3 or WAV file and exposes its output to the analyzer.
type FileSource struct {
	path       string
	sampleRate int
	file       *os.File
	reader     *tapReader
	player     *oto.Player
	point      *tapPoint

	mu     sync.Mutex
	paused bool
	closed bool
}

var (
	_ Source = (*FileSource)(nil)
	_ Pauser = (*FileSource)(nil)
)

// OpenFile decodes path and prepares playback; call Play to start.
func OpenFile(path string, bufferSize int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	pcm, sampleRate, err := decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	ctx, err := outputContext(sampleRate)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	point := newTapPoint(float64(sampleRate), bufferSize)
	reader := newTapReader(pcm, point)
	return &FileSource{
		path:       path,
		sampleRate: sampleRate,
		file:       f,
		reader:     reader,
		player:     ctx.NewPlayer(reader),
		point:      point,
		paused:     true,
	}, nil
}

// decode returns a 16-bit interleaved stereo PCM stream and its sample rate.
func decode(f *os.File) (io.Reader, int, error) {
	switch strings.ToLower(filepath.Ext(f.Name())) {
	case ".mp3":
		dec, err := mp3.NewDecoder(f)
		if err != nil {
			return nil, 0, err
		}
		return dec, dec.SampleRate(), nil
	case ".wav":
		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			return nil, 0, errors.New("invalid WAV file")
		}
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return nil, 0, fmt.Errorf("read WAV PCM: %w", err)
		}
		pcm := pcm16Stereo(buf.Data, int(dec.NumChans), int(dec.BitDepth))
		return bytes.NewReader(pcm), int(dec.SampleRate), nil
	default:
		return nil, 0, fmt.Errorf("unsupported format %q", filepath.Ext(f.Name()))
	}
}

// pcm16Stereo converts interleaved integer samples of any bit depth to 16-bit
// little endian stereo. Mono is duplicated; extra channels are dropped.
func pcm16Stereo(data []int, channels, bitDepth int) []byte {
	if channels <= 0 {
		channels = 1
	}
	shift := bitDepth - 16
	frames := len(data) / channels
	out := make([]byte, frames*bytesPerFrame)
	for i := 0; i < frames; i++ {
		left := data[i*channels]
		right := left
		if channels > 1 {
			right = data[i*channels+1]
		}
		binary.LittleEndian.PutUint16(out[i*4:], uint16(to16(left, shift)))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(to16(right, shift)))
	}
	return out
}

func to16(v, shift int) int16 {
	switch {
	case shift > 0:
		v >>= shift
	case shift < 0:
		if shift == -8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		v <<= -shift
	}
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Name returns the file name.
func (s *FileSource) Name() string { return filepath.Base(s.path) }

// Play starts or resumes playback.
func (s *FileSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.player.Play()
	s.paused = false
}

// Pause pauses playback.
func (s *FileSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.player.Pause()
	s.paused = true
}

// TogglePause switches between playing and paused.
func (s *FileSource) TogglePause() {
	if s.Paused() {
		s.Play()
		return
	}
	s.Pause()
}

// Paused reports whether playback is paused.
func (s *FileSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Ended reports whether the file has been fully played or the source closed.
func (s *FileSource) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	return s.reader.drained() && !s.player.IsPlaying()
}

// Active reports whether audible output is being produced.
func (s *FileSource) Active() bool {
	return !s.Paused() && !s.Ended()
}

// Tap opens the analysis tap on the decoded output.
func (s *FileSource) Tap() (Tap, error) {
	return s.point.tap()
}

// Close stops playback and releases the file.
func (s *FileSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	perr := s.player.Close()
	ferr := s.file.Close()
	return errors.Join(perr, ferr)
}

// tapReader forwards PCM to the output device and mirrors it, downmixed to
// mono, into the tap history.
type tapReader struct {
	src   io.Reader
	point *tapPoint

	mu    sync.Mutex
	carry []byte
	done  bool
}

func newTapReader(src io.Reader, point *tapPoint) *tapReader {
	return &tapReader{src: src, point: point}
}

func (r *tapReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)

	r.mu.Lock()
	if errors.Is(err, io.EOF) {
		r.done = true
	}
	data := append(r.carry, p[:n]...)
	frames := len(data) / bytesPerFrame
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(data[i*4:]))
		rr := int16(binary.LittleEndian.Uint16(data[i*4+2:]))
		mono[i] = (float32(l) + float32(rr)) / 2 / 32768
	}
	r.carry = append(r.carry[:0], data[frames*bytesPerFrame:]...)
	r.mu.Unlock()

	r.point.feed(mono)
	return n, err
}

func (r *tapReader) drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
