package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"printlapse/internal/daemon"
	"printlapse/internal/logging"
	"printlapse/internal/monitor"
	"printlapse/internal/notifications"
	"printlapse/internal/testsupport"
)

type blockingMonitor struct {
	started chan struct{}
}

func newBlockingMonitor() *blockingMonitor {
	return &blockingMonitor{started: make(chan struct{}, 1)}
}

func (m *blockingMonitor) Run(ctx context.Context) error {
	m.started <- struct{}{}
	<-ctx.Done()
	return nil
}

func (m *blockingMonitor) Status() monitor.Status {
	return monitor.Status{Phase: monitor.PhaseIdle}
}

type recordingNotifier struct {
	tests int
	err   error
}

func (n *recordingNotifier) JobCompleted(context.Context, notifications.Artifact) error { return nil }

func (n *recordingNotifier) TestNotification(context.Context) error {
	n.tests++
	return n.err
}

func TestDaemonRunHoldsLockUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	mon := newBlockingMonitor()
	d, err := daemon.New(cfg, logging.NewNop(), mon, nil, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-mon.started:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never started")
	}

	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() || status.Monitor.Phase != monitor.PhaseIdle {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency snapshot in status")
	}
	if held, err := daemon.Locked(cfg.LockPath()); err != nil || !held {
		t.Fatalf("Locked() = %v, %v; want true", held, err)
	}

	second, err := daemon.New(cfg, logging.NewNop(), newBlockingMonitor(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Run(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if d.Status(context.Background()).Running {
		t.Fatal("expected daemon to report stopped")
	}
	if held, err := daemon.Locked(cfg.LockPath()); err != nil || held {
		t.Fatalf("lock should be released, Locked() = %v, %v", held, err)
	}
}

func TestDaemonTestNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	d, err := daemon.New(cfg, nil, newBlockingMonitor(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	sent, msg, err := d.TestNotification(context.Background())
	if sent || err != nil || msg == "" {
		t.Fatalf("unconfigured notification: sent=%v msg=%q err=%v", sent, msg, err)
	}

	notifier := &recordingNotifier{}
	d, err = daemon.New(cfg, nil, newBlockingMonitor(), notifier, "")
	if err != nil {
		t.Fatal(err)
	}
	if sent, _, err := d.TestNotification(context.Background()); !sent || err != nil {
		t.Fatalf("TestNotification() = %v, %v", sent, err)
	}
	if notifier.tests != 1 {
		t.Fatalf("expected one test notification, got %d", notifier.tests)
	}

	notifier.err = errors.New("ntfy down")
	if sent, _, err := d.TestNotification(context.Background()); sent || err == nil {
		t.Fatal("expected failure to propagate")
	}
}

func TestNewRequiresMonitor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, nil, nil, ""); err == nil {
		t.Fatal("expected error without monitor")
	}
}
