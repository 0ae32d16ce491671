package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"printlapse/internal/config"
	"printlapse/internal/deps"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
	"printlapse/internal/notifications"
	"printlapse/internal/preflight"
)

// ErrAlreadyRunning is returned when another daemon holds the lock file.
var ErrAlreadyRunning = errors.New("another printlapse daemon instance is already running")

// Monitor is the polling loop the daemon hosts.
type Monitor interface {
	Run(ctx context.Context) error
	Status() monitor.Status
}

// Daemon hosts the monitor loop and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	monitor  Monitor
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.Mutex
	startedAt time.Time
	deps      []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running                 bool
	PID                     int
	StartedAt               time.Time
	Monitor                 monitor.Status
	LockFilePath            string
	LogPath                 string
	FramesDir               string
	OutputDir               string
	NotificationsConfigured bool
	Dependencies            []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, mon Monitor, notifier notifications.Service, logPath string) (*Daemon, error) {
	if cfg == nil || mon == nil {
		return nil, errors.New("daemon requires config and monitor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		monitor:  mon,
		notifier: notifier,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the daemon lock and runs the monitor until ctx is cancelled.
// The lock is released when Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
				logging.Error(err),
				logging.String("lock", d.lockPath),
				logging.String(logging.FieldImpact, "the next start may report a running instance"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			)
		}
	}()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.deps = preflight.CheckSystemDeps(d.cfg)
	d.mu.Unlock()

	d.logger.Info("printlapse daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("frames_dir", d.cfg.Paths.FramesDir),
		logging.String("output_dir", d.cfg.Paths.OutputDir),
		logging.Bool("notifications", notifications.Configured(d.notifier)),
	)

	runErr := d.monitor.Run(ctx)
	d.logger.Info("printlapse daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
	return runErr
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !notifications.Configured(d.notifier) {
		return false, "no notify command or ntfy topic configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	statuses := append([]deps.Status(nil), d.deps...)
	d.mu.Unlock()

	return Status{
		Running:                 d.running.Load(),
		PID:                     os.Getpid(),
		StartedAt:               startedAt,
		Monitor:                 d.monitor.Status(),
		LockFilePath:            d.lockPath,
		LogPath:                 d.logPath,
		FramesDir:               d.cfg.Paths.FramesDir,
		OutputDir:               d.cfg.Paths.OutputDir,
		NotificationsConfigured: notifications.Configured(d.notifier),
		Dependencies:            statuses,
	}
}

// Locked reports whether a daemon currently holds the lock at path.
func Locked(path string) (bool, error) {
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	return false, probe.Unlock()
}
