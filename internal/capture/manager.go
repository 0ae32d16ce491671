package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

var (
	// ErrAlreadyCapturing is returned by Start while a capture is running.
	ErrAlreadyCapturing = errors.New("capture already running")
	// ErrStartFailed wraps failures to spawn the frame grabber.
	ErrStartFailed = errors.New("capture start failed")
	// ErrStopFailed wraps failures to terminate the frame grabber.
	ErrStopFailed = errors.New("capture stop failed")
)

const (
	defaultGrace = 5 * time.Second
	// killWait bounds how long Stop waits for the process after SIGKILL.
	killWait = 5 * time.Second
)

// Info is a point-in-time description of the running capture.
type Info struct {
	Capturing   bool
	Pid         int
	StartNumber int
	StartedAt   time.Time
	Source      string
}

// Option configures the manager.
type Option func(*Manager)

// WithLauncher injects a custom launcher (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(m *Manager) {
		if l != nil {
			m.launcher = l
		}
	}
}

// WithGrace overrides the SIGTERM grace window.
func WithGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.grace = d
		}
	}
}

// WithClock overrides the time source used for Info.StartedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns at most one frame-grabber process and the frames directory
// it writes into.
type Manager struct {
	dir      string
	spec     Spec
	launcher Launcher
	grace    time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	active *handle
}

type handle struct {
	proc        Process
	startNumber int
	startedAt   time.Time
	done        chan struct{}
	err         error
	stopping    bool
}

// NewManager builds a manager for cfg's capture settings.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		launcher: FFmpegLauncher{Binary: cfg.FFmpegBinary()},
		grace:    defaultGrace,
		logger:   logging.NewComponentLogger(logger, "capture"),
		now:      time.Now,
		dir:      cfg.Paths.FramesDir,
		spec: Spec{
			Source:        cfg.Capture.Source,
			Dir:           cfg.Paths.FramesDir,
			Interval:      cfg.CaptureInterval(),
			Quality:       cfg.Capture.Quality,
			RTSPTransport: cfg.Capture.RTSPTransport,
		},
	}
	if grace := cfg.StopGrace(); grace > 0 {
		m.grace = grace
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the frames directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Start launches the frame grabber. With resumeIfPossible and existing frames
// numbering continues after the highest frame on disk; otherwise the frames
// directory is cleared and numbering restarts at 1.
func (m *Manager) Start(ctx context.Context, resumeIfPossible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return ErrAlreadyCapturing
	}
	if err := ensureDir(m.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, services.Wrap(services.ErrConfiguration, "capture", "prepare", "create frames directory", err))
	}

	highest, err := m.highest()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	startNumber := 1
	if resumeIfPossible && highest > 0 {
		startNumber = highest + 1
	} else if highest > 0 {
		removed, err := clearFrames(m.dir)
		if err != nil {
			return fmt.Errorf("%w: clear stale frames: %w", ErrStartFailed, err)
		}
		m.logger.Info("cleared stale frames",
			logging.Int("removed", removed),
			logging.String(logging.FieldEventType, "frames_cleared"),
		)
	}

	spec := m.spec
	spec.StartNumber = startNumber
	proc, err := m.launcher.Launch(ctx, spec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, services.Wrap(services.ErrExternalTool, "capture", "launch", "spawn frame grabber", err))
	}

	h := &handle{
		proc:        proc,
		startNumber: startNumber,
		startedAt:   m.now(),
		done:        make(chan struct{}),
	}
	m.active = h
	go m.reap(h)

	m.logger.Info("capture started",
		logging.Int("pid", proc.Pid()),
		logging.Int("start_number", startNumber),
		logging.Bool("resumed", startNumber > 1),
		logging.String(logging.FieldEventType, "capture_started"),
	)
	return nil
}

// reap waits for the process and clears the handle if it exited on its own.
func (m *Manager) reap(h *handle) {
	err := h.proc.Wait()
	h.err = err
	close(h.done)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != h || h.stopping {
		return
	}
	m.active = nil
	attrs := []logging.Attr{
		logging.Int("pid", h.proc.Pid()),
		logging.String(logging.FieldEventType, "capture_exited"),
		logging.String(logging.FieldErrorHint, "check the camera source and ffmpeg output"),
		logging.String(logging.FieldImpact, "frames stop accumulating until the capture restarts"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	if lines := h.proc.Diagnostics(); len(lines) > 0 {
		attrs = append(attrs, logging.String("stderr_tail", strings.Join(lines, " | ")))
	}
	logging.WarnWithContext(m.logger, "frame grabber exited unexpectedly", "capture_exited", attrs...)
}

// Stop terminates the running capture: a graceful signal first, then a
// forced kill once the grace window elapses. Stop is a no-op when idle. On
// return the manager is not capturing, even when an error is reported.
func (m *Manager) Stop() error {
	m.mu.Lock()
	h := m.active
	if h == nil {
		m.mu.Unlock()
		return nil
	}
	h.stopping = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.active == h {
			m.active = nil
		}
		m.mu.Unlock()
	}()

	pid := h.proc.Pid()
	if err := h.proc.Terminate(); err != nil {
		m.logger.Debug("terminate signal failed", logging.Int("pid", pid), logging.Error(err))
	}

	timer := time.NewTimer(m.grace)
	defer timer.Stop()
	select {
	case <-h.done:
		m.logger.Info("capture stopped",
			logging.Int("pid", pid),
			logging.String(logging.FieldEventType, "capture_stopped"),
		)
		return nil
	case <-timer.C:
	}

	logging.WarnWithContext(m.logger, "frame grabber ignored terminate; killing", "capture_kill",
		logging.Int("pid", pid),
		logging.Duration("grace", m.grace),
		logging.String(logging.FieldImpact, "the last frame may be truncated"),
	)
	killErr := h.proc.Kill()

	waitTimer := time.NewTimer(killWait)
	defer waitTimer.Stop()
	select {
	case <-h.done:
		return nil
	case <-waitTimer.C:
		if killErr != nil {
			return fmt.Errorf("%w: pid %d: %w", ErrStopFailed, pid, killErr)
		}
		return fmt.Errorf("%w: pid %d did not exit after kill", ErrStopFailed, pid)
	}
}

// IsCapturing reports whether a frame grabber is running.
func (m *Manager) IsCapturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Info describes the running capture, if any.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Info{Source: m.spec.Source}
	}
	return Info{
		Capturing:   true,
		Pid:         m.active.proc.Pid(),
		StartNumber: m.active.startNumber,
		StartedAt:   m.active.startedAt,
		Source:      m.spec.Source,
	}
}

// FrameCount returns the number of frame files on disk.
func (m *Manager) FrameCount() int {
	frames, err := ScanFrames(m.dir)
	if err != nil {
		m.logger.Debug("frame scan failed", logging.Error(err))
		return 0
	}
	return len(frames)
}

// Highest returns the largest frame number on disk, or 0.
func (m *Manager) Highest() int {
	n, err := m.highest()
	if err != nil {
		m.logger.Debug("frame scan failed", logging.Error(err))
		return 0
	}
	return n
}

func (m *Manager) highest() (int, error) {
	frames, err := ScanFrames(m.dir)
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, nil
	}
	return frames[len(frames)-1].Number, nil
}

// CanResume reports whether frames from an earlier run are on disk.
func (m *Manager) CanResume() bool {
	return m.FrameCount() > 0
}

// Frames lists the frames on disk in sequence order.
func (m *Manager) Frames() ([]Frame, error) {
	return ScanFrames(m.dir)
}

// Clear deletes every frame file. A missing directory is not an error.
func (m *Manager) Clear() error {
	removed, err := clearFrames(m.dir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "capture", "clear", "remove frames", err)
	}
	if removed > 0 {
		m.logger.Debug("frames cleared", logging.Int("removed", removed))
	}
	return nil
}
