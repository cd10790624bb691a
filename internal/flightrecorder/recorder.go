// Package flightrecorder keeps a rolling execution trace in memory and writes it to disk when something runs slow.
package flightrecorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/repsched/internal/errors"
)

const (
	defaultMinAge   = 5 * time.Minute
	defaultMaxBytes = 64 * 1024 * 1024 // 64MB
	defaultCooldown = 30 * time.Minute
)

// Recorder wraps a runtime/trace flight recorder. A nil *Recorder is valid and captures nothing.
type Recorder struct {
	logger      *slog.Logger
	fr          *trace.FlightRecorder
	directory   string
	cooldown    time.Duration
	now         func() time.Time
	lastCapture atomic.Int64
}

// Config configures a Recorder. Zero values select the defaults.
type Config struct {
	MinAge    time.Duration
	MaxBytes  uint64
	Cooldown  time.Duration
	Directory string
}

// New creates a recorder writing traces to cfg.Directory, creating it if needed.
func New(logger *slog.Logger, cfg Config) (*Recorder, error) {
	if cfg.Directory == "" {
		return nil, errors.New("traces directory is required")
	}
	stat, err := os.Stat(cfg.Directory)
	switch {
	case err != nil:
		if err = os.MkdirAll(cfg.Directory, 0o700); err != nil { //nolint:mnd // owner only.
			return nil, errors.Wrap(err, "create traces directory", slog.String("dir", cfg.Directory))
		}
	case !stat.IsDir():
		return nil, errors.New("traces path is not a directory", slog.String("dir", cfg.Directory))
	}

	minAge := cfg.MinAge
	if minAge == 0 {
		minAge = defaultMinAge
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}

	return &Recorder{
		logger:      logger,
		fr:          trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: minAge, MaxBytes: maxBytes}),
		directory:   cfg.Directory,
		cooldown:    cooldown,
		now:         time.Now,
		lastCapture: atomic.Int64{},
	}, nil
}

// Start begins recording.
func (r *Recorder) Start(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.fr.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", r.directory), slog.Duration("cooldown", r.cooldown))
	return nil
}

// Stop ends recording.
func (r *Recorder) Stop(ctx context.Context) {
	if r == nil {
		return
	}
	r.fr.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the recorded trace to <reason>-<timestamp>.trace. At most one trace is written per cooldown period
// across all reasons.
func (r *Recorder) Capture(ctx context.Context, reason string) {
	if r == nil || !r.fr.Enabled() {
		return
	}
	now := r.now()
	last := r.lastCapture.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture due to cooldown",
			slog.String("reason", reason), slog.Time("last_capture", time.Unix(0, last)))
		return
	}
	if !r.lastCapture.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	path := filepath.Join(r.directory, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	if err := r.writeTrace(path); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace", errors.SlogError(err))
		return
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace", slog.String("reason", reason), slog.String("file", path))
}

func (r *Recorder) writeTrace(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trace file", slog.String("file", path))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close trace file", slog.String("file", path)))
		}
	}()
	if _, err = r.fr.WriteTo(file); err != nil {
		return errors.Wrap(err, "write trace", slog.String("file", path))
	}
	return nil
}
