// Package config loads runtime settings from YAML with built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

type AudioConfig struct {
	Device      string  `yaml:"device"`
	BufferSize  int     `yaml:"buffer_size"`
	File        string  `yaml:"file"`
	Synthetic   bool    `yaml:"synthetic"`
	SampleRate  float64 `yaml:"sample_rate"`
	FFTSize     int     `yaml:"fft_size"`
	Smoothing   float64 `yaml:"smoothing"`
	MinDecibels float64 `yaml:"min_decibels"`
	MaxDecibels float64 `yaml:"max_decibels"`
}

type DecayConfig struct {
	Grace  time.Duration `yaml:"grace"`
	Factor float64       `yaml:"factor"`
}

type SceneConfig struct {
	SurfaceGrid    int     `yaml:"surface_grid"`
	ParticleGrid   int     `yaml:"particle_grid"`
	ParticleSeed   int64   `yaml:"particle_seed"`
	CameraDistance float64 `yaml:"camera_distance"`
	FOV            float64 `yaml:"fov"`
}

type RenderConfig struct {
	Backend string `yaml:"backend"`
	Palette string `yaml:"palette"`
	Color   bool   `yaml:"color"`
	Status  bool   `yaml:"status"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	FPS    float64      `yaml:"fps"`
	Audio  AudioConfig  `yaml:"audio"`
	Decay  DecayConfig  `yaml:"decay"`
	Scene  SceneConfig  `yaml:"scene"`
	Render RenderConfig `yaml:"render"`
	Web    WebConfig    `yaml:"web"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		FPS: 30,
		Audio: AudioConfig{
			BufferSize:  4096,
			SampleRate:  44100,
			FFTSize:     256,
			Smoothing:   0.8,
			MinDecibels: -100,
			MaxDecibels: -30,
		},
		Decay: DecayConfig{
			Grace:  100 * time.Millisecond,
			Factor: 0.1,
		},
		Scene: SceneConfig{
			SurfaceGrid:    64,
			ParticleGrid:   32,
			ParticleSeed:   1,
			CameraDistance: 5,
			FOV:            75,
		},
		Render: RenderConfig{
			Backend: "terminal",
			Palette: "default",
			Color:   true,
			Status:  true,
		},
		Web: WebConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile overlays the YAML document at path onto c.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// DefaultPaths lists the locations searched when no file is given.
func DefaultPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".config", "spectrascape", "config.yaml"),
		filepath.Join(home, ".config", "spectrascape", "config.yml"),
		filepath.Join(home, ".spectrascape.yaml"),
	}
}

// Load returns defaults overlaid with path, or with the first existing
// default path when path is empty. Overrides run after the file and before
// validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.FPS <= 0 || c.FPS > 240 {
		bad("fps must be in (0, 240], got %v", c.FPS)
	}
	if c.Audio.BufferSize < 0 {
		bad("audio.buffer_size must not be negative")
	}
	if n := c.Audio.FFTSize; n < 32 || n > 32768 || n&(n-1) != 0 {
		bad("audio.fft_size must be a power of two in [32, 32768], got %d", n)
	}
	if c.Audio.Smoothing < 0 || c.Audio.Smoothing >= 1 {
		bad("audio.smoothing must be in [0, 1), got %v", c.Audio.Smoothing)
	}
	if c.Audio.MinDecibels >= c.Audio.MaxDecibels {
		bad("audio.min_decibels must be below max_decibels")
	}
	if c.Decay.Grace < 0 {
		bad("decay.grace must not be negative")
	}
	if c.Decay.Factor <= 0 || c.Decay.Factor > 1 {
		bad("decay.factor must be in (0, 1], got %v", c.Decay.Factor)
	}
	if c.Scene.SurfaceGrid < 2 || c.Scene.ParticleGrid < 2 {
		bad("scene grids need at least 2 vertices per side")
	}
	if c.Scene.CameraDistance <= 0 {
		bad("scene.camera_distance must be positive")
	}
	if c.Scene.FOV <= 0 || c.Scene.FOV >= 180 {
		bad("scene.fov must be in (0, 180)")
	}
	switch strings.ToLower(c.Render.Backend) {
	case "terminal", "sdl":
	default:
		bad("render.backend must be terminal or sdl, got %q", c.Render.Backend)
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		bad("render size must not be negative")
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		bad("web.addr is required when the web server is enabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		bad("log.format must be text or json, got %q", c.Log.Format)
	}
	return errors.Join(errs...)
}
