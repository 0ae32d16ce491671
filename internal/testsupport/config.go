package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"printlapse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It points the printer at a placeholder URL and the camera at a snapshot
// URL; neither is contacted unless the test wires a server in.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.FramesDir = filepath.Join(base, "frames")
	cfgVal.Paths.OutputDir = filepath.Join(base, "videos")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Printer.URL = "http://printer.invalid"
	cfgVal.Capture.Source = "http://camera.invalid/snapshot.jpg"
	cfgVal.Monitor.PollIntervalSeconds = 10
	cfgVal.Monitor.WatchdogTimeoutSeconds = 60

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPrinterURL points the status client at url, typically an httptest server.
func WithPrinterURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Printer.URL = url
	}
}

// WithWatchdog sets the watchdog timeout in seconds; zero disables it.
func WithWatchdog(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Monitor.WatchdogTimeoutSeconds = seconds
	}
}

// WithNotifyCommand sets the post-assembly command template.
func WithNotifyCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notify.Command = command
	}
}

// WithDirectories creates the frames, output, and log directories up front.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.FramesDir)
}
