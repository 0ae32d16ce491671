package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"printlapse/internal/config"
	"printlapse/internal/daemon"
	"printlapse/internal/ipc"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
	"printlapse/internal/notifications"
	"printlapse/internal/testsupport"
)

type fakeMonitor struct {
	status monitor.Status
}

func (m fakeMonitor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m fakeMonitor) Status() monitor.Status { return m.status }

type recordingNotifier struct {
	tests atomic.Int32
}

func (n *recordingNotifier) JobCompleted(context.Context, notifications.Artifact) error { return nil }

func (n *recordingNotifier) TestNotification(context.Context) error {
	n.tests.Add(1)
	return nil
}

type cliTestEnv struct {
	cfg        *config.Config
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithDirectories()}, opts...)...)
	configPath := filepath.Join(homeDir, ".config", "printlapse", "config.toml")
	writeTestConfig(t, configPath, cfg)

	// Unix socket paths are length-limited; keep this one short.
	sockDir, err := os.MkdirTemp("", "plcli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: filepath.Join(sockDir, "printlapse.sock"),
		configPath: configPath,
	}
}

// startDaemon runs a daemon hosting mon and serves it on env.socketPath
// until the test ends.
func (env *cliTestEnv) startDaemon(t *testing.T, mon daemon.Monitor, notifier notifications.Service) *daemon.Daemon {
	t.Helper()

	d, err := daemon.New(env.cfg, logging.NewNop(), mon, notifier, filepath.Join(env.cfg.Paths.LogDir, "printlapse-test.log"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	srv, err := ipc.NewServer(ctx, env.socketPath, d, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		<-done
	})
	waitFor(t, func() bool { return d.Status(ctx).Running })
	return d
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
frames_dir = %q
output_dir = %q
log_dir = %q

[printer]
url = %q

[capture]
source = %q

[notify]
command = %q
`,
		cfg.Paths.FramesDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Printer.URL,
		cfg.Capture.Source,
		cfg.Notify.Command,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	for range 200 {
		if fn() {
			return
		}
		sleepBriefly()
	}
	t.Fatal("condition not met within 2s")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
