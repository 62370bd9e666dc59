package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Config controls how a Capture instance is created.
type Config struct {
	DeviceName string
	BufferSize int
	Channels   int
}

const defaultBufferSize = 4096

// Capture wraps a PortAudio input stream as an always-playing Source.
type Capture struct {
	stream     *portaudio.Stream
	device     Device
	sampleRate float64
	channels   int
	point      *tapPoint

	mu     sync.Mutex
	closed bool
}

var _ Source = (*Capture)(nil)

// NewCapture selects an input device and starts streaming from it. PortAudio
// must be initialized.
func NewCapture(cfg Config) (*Capture, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	devices, err := ListInputDevices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	device, err := selectDevice(devices, cfg.DeviceName)
	if err != nil {
		return nil, err
	}

	c := &Capture{
		device:     device,
		sampleRate: device.DefaultSampleHz,
		channels:   min(cfg.Channels, device.MaxInput),
		point:      newTapPoint(device.DefaultSampleHz, cfg.BufferSize),
	}

	framesPerBuffer := cfg.BufferSize / 4
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device.info,
			Channels: c.channels,
			Latency:  device.info.DefaultLowInputLatency,
		},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("open stream on %s: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream on %s: %w", device.Name, err)
	}
	c.stream = stream
	return c, nil
}

// Name returns the capture device name.
func (c *Capture) Name() string {
	if c.device.Name == "" {
		return "capture"
	}
	return c.device.Name
}

// Active is true while the stream is open; live input is never paused.
func (c *Capture) Active() bool { return !c.Ended() }

func (c *Capture) Paused() bool { return false }

// Ended reports whether the stream has been closed.
func (c *Capture) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Capture) Tap() (Tap, error) { return c.point.tap() }

// SampleRate returns the stream sample rate.
func (c *Capture) SampleRate() float64 { return c.sampleRate }

// Device returns the device the stream was opened on.
func (c *Capture) Device() Device { return c.device }

// Close stops and closes the stream. Later calls are no-ops.
func (c *Capture) Close() error {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already || c.stream == nil {
		return nil
	}

	if err := c.stream.Stop(); err != nil && !errors.Is(err, portaudio.StreamIsStopped) {
		_ = c.stream.Close()
		return fmt.Errorf("stop stream: %w", err)
	}
	return c.stream.Close()
}

func (c *Capture) process(in []float32) {
	c.point.feed(downmix(in, c.channels))
}
