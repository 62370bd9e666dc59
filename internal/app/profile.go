package app

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// profiler appends per-frame section timings to a CSV file. A nil profiler
// is valid and records nothing.
type profiler struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
	start  time.Time
	last   time.Time
	now    func() time.Time
}

func newProfiler(path string, logger *slog.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("profiler disabled", "path", path, "error", err)
		return nil
	}
	p := &profiler{
		file:   f,
		logger: logger,
		now:    time.Now,
	}
	p.write("timestamp,frame,section,delta_ms\n")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := p.now()
	p.start = now
	p.last = now
}

func (p *profiler) markSection(frame uint64, name string) {
	if p == nil {
		return
	}
	now := p.now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.log(now, frame, name, delta)
}

func (p *profiler) endFrame(frame uint64) {
	if p == nil {
		return
	}
	now := p.now()
	p.log(now, frame, "frame_total", now.Sub(p.start).Seconds()*1000)
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

func (p *profiler) log(at time.Time, frame uint64, section string, deltaMs float64) {
	p.write(fmt.Sprintf("%s,%d,%s,%.3f\n", at.Format(time.RFC3339Nano), frame, section, deltaMs))
}

func (p *profiler) write(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	if _, err := p.file.WriteString(line); err != nil {
		p.logger.Warn("profiler write failed, disabling", "error", err)
		_ = p.file.Close()
		p.file = nil
	}
}
