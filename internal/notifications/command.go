package notifications

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a shell command line and returns its combined output.
type Runner interface {
	Run(ctx context.Context, commandLine string) ([]byte, error)
}

type shellRunner struct{}

func (shellRunner) Run(ctx context.Context, commandLine string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", commandLine).CombinedOutput()
}

// Option configures notifiers built by NewService.
type Option func(*commandService)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(s *commandService) {
		if r != nil {
			s.runner = r
		}
	}
}

// commandService runs a user-supplied shell template per finished video.
// Supported placeholders: {path}, {dir}, {name}, {job}, {label}. Every
// substituted value is single-quoted for the shell.
type commandService struct {
	template string
	timeout  time.Duration
	runner   Runner
}

func newCommandService(template string, timeout time.Duration, opts ...Option) *commandService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &commandService{template: template, timeout: timeout, runner: shellRunner{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *commandService) JobCompleted(ctx context.Context, artifact Artifact) error {
	return s.run(ctx, RenderCommand(s.template, artifact))
}

func (s *commandService) TestNotification(ctx context.Context) error {
	return s.run(ctx, RenderCommand(s.template, Artifact{
		Path:     "/tmp/printlapse-test.mp4",
		JobID:    "test",
		JobLabel: "printlapse test",
	}))
}

func (s *commandService) run(ctx context.Context, commandLine string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	output, err := s.runner.Run(ctx, commandLine)
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(string(output))
	if len(detail) > 512 {
		detail = detail[len(detail)-512:]
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failed("notify command timed out after %s", s.timeout)
	}
	if detail != "" {
		return failed("notify command: %v: %s", err, detail)
	}
	return failed("notify command: %v", err)
}

// RenderCommand substitutes artifact placeholders into template.
func RenderCommand(template string, artifact Artifact) string {
	replacer := strings.NewReplacer(
		"{path}", shellQuote(artifact.Path),
		"{dir}", shellQuote(artifact.Dir()),
		"{name}", shellQuote(artifact.Name()),
		"{job}", shellQuote(artifact.JobID),
		"{label}", shellQuote(artifact.JobLabel),
	)
	return replacer.Replace(template)
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
