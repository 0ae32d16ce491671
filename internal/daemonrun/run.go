package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"printlapse/internal/assembly"
	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/daemon"
	"printlapse/internal/deps"
	"printlapse/internal/ipc"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
	"printlapse/internal/notifications"
	"printlapse/internal/preflight"
	"printlapse/internal/printer"
)

const (
	currentLogName   = "printlapse.log"
	logSweepInterval = 24 * time.Hour
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the printlapse daemon and blocks until SIGINT/SIGTERM or until
// cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}
	// Probe the lock before touching the pid file, log pointer, or socket so
	// a second instance leaves the running daemon's files alone.
	if held, err := daemon.Locked(cfg.LockPath()); err != nil {
		return err
	} else if held {
		return daemon.ErrAlreadyRunning
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("printlapse-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	cleanupLogs(logger, cfg, logPath)
	logDependencySnapshot(signalCtx, logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	notifier := notifications.NewService(cfg)
	captureManager := capture.NewManager(cfg, logger)
	mon, err := monitor.New(cfg, monitor.Dependencies{
		Source:    printer.NewClient(cfg),
		Capture:   captureManager,
		Assembler: assembly.New(cfg, captureManager, logger),
		Notifier:  notifier,
	}, logger)
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	d, err := daemon.New(cfg, logger, mon, notifier, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	ipcServer.Serve()
	defer ipcServer.Close()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		return d.Run(groupCtx)
	})
	group.Go(func() error {
		sweepLogs(groupCtx, logger, cfg, logPath, logSweepInterval)
		return nil
	})

	err = group.Wait()
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return err
	}
	if err != nil {
		logging.ErrorWithContext(logger, "daemon exited with error", "daemon_failed", logging.Error(err))
		return err
	}
	logger.Info("printlapse daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

func cleanupLogs(logger *slog.Logger, cfg *config.Config, current string) {
	maxAge := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
	logging.PruneLogs(logger, cfg.Paths.LogDir, "printlapse-*.log", maxAge, current, CurrentLogPath(cfg.Paths.LogDir))
}

// sweepLogs reapplies log retention while the daemon runs for weeks at a time.
func sweepLogs(ctx context.Context, logger *slog.Logger, cfg *config.Config, current string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupLogs(logger, cfg, current)
		}
	}
}

// CurrentLogPath returns the stable pointer to the running daemon's log.
func CurrentLogPath(logDir string) string {
	return filepath.Join(logDir, currentLogName)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := CurrentLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return renameio.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	ffmpeg := cfg.FFmpegBinary()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.String("printer_url", cfg.StatusURL()),
		logging.Bool("api_key_present", cfg.Printer.APIKey != ""),
		logging.Bool("notify_command", cfg.Notify.Command != ""),
		logging.Bool("ntfy_topic", cfg.Notify.NtfyTopic != ""),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	if version, err := deps.Version(ctx, ffmpeg); err == nil {
		attrs = append(attrs, logging.String("ffmpeg_version", version))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, missing := range deps.MissingRequired(preflight.CheckSystemDeps(cfg)) {
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, missing.Description),
			logging.String(logging.FieldErrorHint, "install it or set capture.ffmpeg_binary"),
		)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "the daemon keeps running and retries on every poll"),
			logging.String(logging.FieldErrorHint, "run `printlapse check` for details"),
		)
	}
}
