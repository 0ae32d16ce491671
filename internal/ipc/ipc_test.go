package ipc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"printlapse/internal/daemon"
	"printlapse/internal/deps"
	"printlapse/internal/ipc"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
)

type stubBackend struct {
	status  daemon.Status
	sendErr error
}

func (b stubBackend) Status(context.Context) daemon.Status { return b.status }

func (b stubBackend) TestNotification(context.Context) (bool, string, error) {
	if b.sendErr != nil {
		return false, "failed to send notification", b.sendErr
	}
	return true, "test notification sent", nil
}

func startServer(t *testing.T, backend ipc.Backend) (string, *ipc.Server) {
	t.Helper()
	// Unix socket paths are length-limited; keep the directory short.
	dir, err := os.MkdirTemp("", "pl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "printlapse.sock")

	srv, err := ipc.NewServer(context.Background(), socket, backend, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	return socket, srv
}

func TestIPCServerClient(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	backend := stubBackend{status: daemon.Status{
		Running:      true,
		PID:          4242,
		StartedAt:    started,
		LockFilePath: "/tmp/printlapse.lock",
		FramesDir:    "/tmp/frames",
		Monitor: monitor.Status{
			Phase:     monitor.PhaseCapturing,
			JobID:     "17",
			JobLabel:  "benchy",
			Capturing: true,
			Frames:    120,
		},
		Dependencies: []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}},
	}}
	socket, srv := startServer(t, backend)
	defer srv.Close()

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.PID != 4242 || !status.StartedAt.Equal(started) {
		t.Fatalf("unexpected daemon fields %+v", status)
	}
	if status.Monitor.Phase != monitor.PhaseCapturing || status.Monitor.JobID != "17" || status.Monitor.Frames != 120 {
		t.Fatalf("unexpected monitor status %+v", status.Monitor)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("unexpected dependencies %+v", status.Dependencies)
	}

	resp, err := client.TestNotification()
	if err != nil || !resp.Sent {
		t.Fatalf("TestNotification RPC = %+v, %v", resp, err)
	}
}

func TestIPCPropagatesNotificationError(t *testing.T) {
	socket, srv := startServer(t, stubBackend{sendErr: errors.New("ntfy unreachable")})
	defer srv.Close()

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.TestNotification(); err == nil || !strings.Contains(err.Error(), "ntfy unreachable") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestCloseRemovesSocket(t *testing.T) {
	socket, srv := startServer(t, stubBackend{})
	srv.Close()
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("socket should be removed, stat err = %v", err)
	}
	if _, err := ipc.Dial(socket); err == nil {
		t.Fatal("dial should fail after close")
	}
}

func TestNewServerRequiresBackend(t *testing.T) {
	if _, err := ipc.NewServer(context.Background(), filepath.Join(t.TempDir(), "x.sock"), nil, nil); err == nil {
		t.Fatal("expected error without backend")
	}
}
