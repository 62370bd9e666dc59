package audio

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio input device.
type Device struct {
	Name            string
	MaxInput        int
	MaxOutput       int
	DefaultSampleHz float64
	HostAPI         string
	IsDefaultInput  bool
	IsHostDefault   bool

	info *portaudio.DeviceInfo
}

// String renders a device line for --list-audio-devices.
func (d Device) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", d.Name, d.HostAPI)
	if d.IsDefaultInput {
		b.WriteString(" (default)")
	}
	fmt.Fprintf(&b, "\n    inputs:%d outputs:%d sample:%.0f Hz", d.MaxInput, d.MaxOutput, d.DefaultSampleHz)
	return b.String()
}

// ListInputDevices returns devices with at least one input channel, sorted by
// host API and name. PortAudio must be initialized.
func ListInputDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultInput := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInput = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		hostDefault := -1
		if host.DefaultInputDevice != nil {
			hostDefault = host.DefaultInputDevice.Index
		}
		for _, d := range host.Devices {
			if d == nil || d.MaxInputChannels <= 0 {
				continue
			}
			devices = append(devices, Device{
				Name:            d.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefaultInput:  d.Index == defaultInput,
				IsHostDefault:   d.Index == hostDefault,
				info:            d,
			})
		}
	}
	sortDevices(devices)
	return devices, nil
}

// AutoDetectDevice returns the input device NewCapture would pick without a
// configured name.
func AutoDetectDevice() (Device, error) {
	devices, err := ListInputDevices()
	if err != nil {
		return Device{}, err
	}
	return selectDevice(devices, "")
}

func sortDevices(devices []Device) {
	slices.SortFunc(devices, func(a, b Device) int {
		if c := strings.Compare(a.HostAPI, b.HostAPI); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// selectDevice picks the first device whose name contains name, ignoring
// case. With an empty name the highest scoring device wins; ties go to the
// alphabetically first name.
func selectDevice(devices []Device, name string) (Device, error) {
	if name != "" {
		want := strings.ToLower(name)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), want) {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("audio device %q: %w", name, ErrNoDevice)
	}

	if len(devices) == 0 {
		return Device{}, ErrNoDevice
	}
	best := slices.MaxFunc(devices, func(a, b Device) int {
		if c := a.score() - b.score(); c != 0 {
			return c
		}
		// equal scores: the alphabetically first name ranks higher
		return strings.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name))
	})
	return best, nil
}

var loopbackHints = []string{"monitor", "loopback", "stereo mix", "what u hear", "mix"}

// score ranks a device for automatic selection. The system default dominates;
// loopback monitors come next so the visuals follow what the machine plays.
func (d Device) score() int {
	score := d.MaxInput
	if d.IsDefaultInput {
		score += 50
	}
	if d.IsHostDefault {
		score += 40
	}
	lower := strings.ToLower(d.Name)
	if slices.ContainsFunc(loopbackHints, func(h string) bool { return strings.Contains(lower, h) }) {
		score += 20
	}
	if strings.Contains(lower, "default") {
		score += 10
	}
	return score
}
