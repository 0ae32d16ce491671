// Package assembly turns a directory of numbered frames into a video.
package assembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

var (
	// ErrNoFrames is returned when there is nothing to assemble.
	ErrNoFrames = errors.New("no frames to assemble")
	// ErrAssemblyFailed marks encoder failures.
	ErrAssemblyFailed = errors.New("assembly failed")
)

const maxDiagnosticBytes = 4096

// Error carries the encoder's diagnostic output.
type Error struct {
	Output   string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", ErrAssemblyFailed, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLine(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{ErrAssemblyFailed, services.ErrExternalTool}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Runner executes the encoder and returns its combined output.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.CombinedOutput()
}

// FrameSource lists the frames to assemble.
type FrameSource interface {
	Dir() string
	Frames() ([]capture.Frame, error)
}

// Option configures the assembler.
type Option func(*Assembler)

// WithRunner injects a custom runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(a *Assembler) {
		if r != nil {
			a.runner = r
		}
	}
}

// Assembler encodes frames with ffmpeg.
type Assembler struct {
	binary    string
	framerate int
	crf       int
	codec     string
	frames    FrameSource
	runner    Runner
	logger    *slog.Logger
}

// New builds an assembler for cfg's encoder settings.
func New(cfg *config.Config, frames FrameSource, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		binary:    cfg.FFmpegBinary(),
		framerate: cfg.Assembly.Framerate,
		crf:       cfg.Assembly.CRF,
		codec:     cfg.Assembly.Codec,
		frames:    frames,
		runner:    commandRunner{},
		logger:    logging.NewComponentLogger(logger, "assembly"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result summarizes a successful assembly.
type Result struct {
	Path     string
	Frames   int
	Duration time.Duration
	Elapsed  time.Duration
}

// Assemble encodes every frame into outputPath. The video appears at
// outputPath only if the encoder succeeds; frames are never deleted here.
func (a *Assembler) Assemble(ctx context.Context, outputPath string) (Result, error) {
	frames, err := a.frames.Frames()
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "assembly", "scan", "list frames", err)
	}
	if len(frames) == 0 {
		return Result{}, ErrNoFrames
	}
	inputDir, startNumber := a.frames.Dir(), frames[0].Number
	if gaps := countGaps(frames); gaps > 0 {
		staged, err := stageSequence(a.frames.Dir(), frames)
		if err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "assembly", "stage", "renumber frames with gaps", err)
		}
		defer os.RemoveAll(staged) //nolint:errcheck // links only; originals stay put
		inputDir, startNumber = staged, 1
		a.logger.Info("frame sequence has gaps; encoding a renumbered copy",
			logging.Int("gaps", gaps),
			logging.Int("first", frames[0].Number),
			logging.Int("last", frames[len(frames)-1].Number),
		)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "assembly", "prepare", "create output directory", err)
	}

	pending, err := renameio.NewPendingFile(outputPath, renameio.WithPermissions(0o644))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "assembly", "prepare", "create pending output", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after a successful replace

	args := a.buildArgs(inputDir, startNumber, pending.Name(), outputPath)
	started := time.Now()
	a.logger.Info("assembling video",
		logging.Int("frames", len(frames)),
		logging.String("output", outputPath),
		logging.String(logging.FieldEventType, "assembly_started"),
	)
	output, runErr := a.runner.Run(ctx, a.binary, args)
	if runErr != nil {
		return Result{}, newError(output, runErr)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "assembly", "publish", "replace output", err)
	}

	result := Result{
		Path:     outputPath,
		Frames:   len(frames),
		Duration: a.videoDuration(len(frames)),
		Elapsed:  time.Since(started),
	}
	a.logger.Info("video assembled",
		logging.String("output", outputPath),
		logging.Int("frames", result.Frames),
		logging.Duration("video_duration", result.Duration),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "assembly_completed"),
	)
	return result, nil
}

func (a *Assembler) buildArgs(inputDir string, startNumber int, tempPath, outputPath string) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-framerate", strconv.Itoa(a.framerate),
		"-start_number", strconv.Itoa(startNumber),
		"-i", filepath.Join(inputDir, capture.FramePattern),
		"-c:v", a.codec,
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(a.crf),
	}
	if muxer := muxerFor(outputPath); muxer != "" {
		args = append(args, "-f", muxer)
	}
	return append(args, tempPath)
}

func (a *Assembler) videoDuration(frames int) time.Duration {
	if a.framerate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(a.framerate)
}

// muxerFor names the container explicitly since the pending file's temporary
// name carries no usable extension.
func muxerFor(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp4", "m4v":
		return "mp4"
	case "mkv":
		return "matroska"
	case "mov":
		return "mov"
	case "webm":
		return "webm"
	default:
		return ""
	}
}

// StagingPrefix names the scratch directories stageSequence creates inside
// the frames directory.
const StagingPrefix = ".assemble-"

// stageSequence links frames into a scratch directory numbered densely from
// 1, since ffmpeg's image2 reader stops at the first missing number. Hard
// links are tried first and symlinks are the fallback.
func stageSequence(dir string, frames []capture.Frame) (string, error) {
	staging, err := os.MkdirTemp(dir, StagingPrefix)
	if err != nil {
		return "", err
	}
	for i, frame := range frames {
		target := filepath.Join(staging, capture.FrameName(i+1))
		if err := os.Link(frame.Path, target); err == nil {
			continue
		}
		src, err := filepath.Abs(frame.Path)
		if err == nil {
			err = os.Symlink(src, target)
		}
		if err != nil {
			_ = os.RemoveAll(staging)
			return "", fmt.Errorf("stage %s: %w", filepath.Base(frame.Path), err)
		}
	}
	return staging, nil
}

// RemoveStale deletes pending encoder outputs in outputDir and staging
// directories in framesDir left behind by a process that died mid-encode.
// Call it only while no assembly can be running.
func RemoveStale(outputDir, framesDir string) (int, error) {
	removed := 0
	var errs []error
	entries, err := os.ReadDir(outputDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isPendingName(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(outputDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	entries, err = os.ReadDir(framesDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), StagingPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(framesDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// isPendingName matches renameio temp files: a dot, the target's base name,
// then a random decimal suffix.
func isPendingName(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range []string{".mp4", ".m4v", ".mkv", ".mov", ".webm"} {
		suffix, ok := strings.CutPrefix(ext, known)
		if ok && suffix != "" && strings.Trim(suffix, "0123456789") == "" {
			return true
		}
	}
	return false
}

func countGaps(frames []capture.Frame) int {
	gaps := 0
	for i := 1; i < len(frames); i++ {
		if frames[i].Number != frames[i-1].Number+1 {
			gaps++
		}
	}
	return gaps
}

func newError(output []byte, err error) *Error {
	out := bytes.TrimSpace(output)
	if len(out) > maxDiagnosticBytes {
		out = out[len(out)-maxDiagnosticBytes:]
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &Error{Output: string(out), ExitCode: code, Err: err}
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		return strings.TrimSpace(output[i+1:])
	}
	return output
}
