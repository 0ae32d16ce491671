package notifications

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"printlapse/internal/config"
)

// ErrNotificationFailed marks a notifier that could not deliver.
var ErrNotificationFailed = errors.New("notification failed")

// Artifact describes a finished timelapse video.
type Artifact struct {
	Path     string
	JobID    string
	JobLabel string
	Frames   int
	Duration time.Duration
}

// Dir returns the directory holding the artifact.
func (a Artifact) Dir() string {
	return filepath.Dir(a.Path)
}

// Name returns the artifact's file name.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Service defines the notification surface exposed to the monitor and CLI.
type Service interface {
	JobCompleted(ctx context.Context, artifact Artifact) error
	TestNotification(ctx context.Context) error
}

// NewService builds the notifiers configured in cfg. When neither a command
// nor an ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	var services []Service
	if cfg.Notify.Command != "" {
		services = append(services, newCommandService(cfg.Notify.Command, cfg.NotifyCommandTimeout(), opts...))
	}
	if cfg.Notify.NtfyTopic != "" {
		services = append(services, newNtfyService(cfg.Notify.NtfyTopic, time.Duration(cfg.Notify.NtfyRequestTimeout)*time.Second))
	}
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return multiService(services)
	}
}

// Configured reports whether svc delivers anywhere.
func Configured(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

// multiService fans out to every notifier and joins their errors.
type multiService []Service

func (m multiService) JobCompleted(ctx context.Context, artifact Artifact) error {
	var errs []error
	for _, svc := range m {
		if err := svc.JobCompleted(ctx, artifact); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) TestNotification(ctx context.Context) error {
	var errs []error
	for _, svc := range m {
		if err := svc.TestNotification(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) JobCompleted(context.Context, Artifact) error { return nil }
func (noopService) TestNotification(context.Context) error       { return nil }

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotificationFailed, fmt.Sprintf(format, args...))
}
