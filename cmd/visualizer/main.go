package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guidoenr/spectrascape/internal/app"
	"github.com/guidoenr/spectrascape/internal/audio"
	"github.com/guidoenr/spectrascape/internal/config"
	"github.com/guidoenr/spectrascape/internal/logger"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file (default: ~/.config/spectrascape/config.yaml)")
		deviceName = flag.String("audio-device", "", "PortAudio input device name (substring match)")
		file       = flag.String("file", "", "Play an MP3 or WAV file instead of capturing")
		noAudio    = flag.Bool("no-audio", false, "Use the synthetic generator instead of capture")
		fps        = flag.Float64("fps", 0, "Target frames per second")
		bufferSize = flag.Int("buffer-size", 0, "Audio history size in samples")
		width      = flag.Int("width", 0, "Frame width (0 follows the terminal)")
		height     = flag.Int("height", 0, "Frame height (0 follows the terminal)")
		backend    = flag.String("backend", "", "Renderer backend (terminal|sdl)")
		palette    = flag.String("palette", "", "ASCII palette (default|box|lines|spark|dots)")
		noColor    = flag.Bool("no-color", false, "Disable ANSI color output")
		showStatus = flag.Bool("status", true, "Display status bar")
		webOn      = flag.Bool("web", false, "Serve the touch pad and status API")
		webAddr    = flag.String("web-addr", "", "Listen address for --web")
		grace      = flag.Duration("grace", 0, "How long the last frame holds after audio stops")
		decay      = flag.Float64("decay", 0, "Per-frame relaxation factor toward rest, in (0, 1]")
		logLevel   = flag.String("log-level", "", "Log level (debug|info|warn|error)")
		logFormat  = flag.String("log-format", "", "Log format (text|json)")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		profile    = flag.String("profile", "", "Append per-frame timings to this CSV file")
	)
	flag.Parse()

	// Only flags given on the command line override the file.
	overrides := func(cfg *config.Config) {
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "audio-device":
				cfg.Audio.Device = *deviceName
			case "file":
				cfg.Audio.File = *file
			case "no-audio":
				cfg.Audio.Synthetic = *noAudio
			case "fps":
				cfg.FPS = *fps
			case "buffer-size":
				cfg.Audio.BufferSize = *bufferSize
			case "width":
				cfg.Render.Width = *width
			case "height":
				cfg.Render.Height = *height
			case "backend":
				cfg.Render.Backend = *backend
			case "palette":
				cfg.Render.Palette = *palette
			case "no-color":
				cfg.Render.Color = !*noColor
			case "status":
				cfg.Render.Status = *showStatus
			case "web":
				cfg.Web.Enabled = *webOn
			case "web-addr":
				cfg.Web.Addr = *webAddr
			case "grace":
				cfg.Decay.Grace = *grace
			case "decay":
				cfg.Decay.Factor = *decay
			case "log-level":
				cfg.Log.Level = *logLevel
			case "log-format":
				cfg.Log.Format = *logFormat
			}
		})
	}
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitConfig
	}

	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	slog.SetDefault(log)

	if *listDevs {
		if err := listDevices(); err != nil {
			log.Error("list devices", "error", err)
			return exitRuntime
		}
		return exitOK
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, app.Options{
		Logger:      log,
		Out:         os.Stdout,
		Keyboard:    cfg.Render.Backend != "sdl",
		ProfilePath: *profile,
	})
	if err != nil {
		log.Error("failed to create app", "error", err)
		if errors.Is(err, config.ErrInvalid) {
			return exitConfig
		}
		return exitRuntime
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("cleanup error", "error", err)
		}
	}()

	start := time.Now()
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("runtime error", "error", err)
		return exitRuntime
	}
	log.Info("exiting", "uptime", time.Since(start).Round(time.Millisecond))
	return exitOK
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return fmt.Errorf("initialize PortAudio: %w", err)
	}
	defer audio.Terminate()

	devices, err := audio.ListInputDevices()
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		fmt.Printf("- %s\n", dev)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleHz, dev.MaxInput)
	}
	return nil
}
