package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"printlapse/internal/capture"
	"printlapse/internal/config"
	"printlapse/internal/logging"
	"printlapse/internal/services"
)

type dirFrames string

func (d dirFrames) Dir() string                      { return string(d) }
func (d dirFrames) Frames() ([]capture.Frame, error) { return capture.ScanFrames(string(d)) }

type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
	// onRun sees the arguments while the encoder would be running.
	onRun func(args []string)
}

func (r *fakeRunner) Run(_ context.Context, _ string, args []string) ([]byte, error) {
	r.calls = append(r.calls, args)
	if r.onRun != nil {
		r.onRun(args)
	}
	if r.err != nil {
		return r.output, r.err
	}
	// Behave like ffmpeg: write the container to the last argument.
	if err := os.WriteFile(args[len(args)-1], []byte("video"), 0o644); err != nil {
		return nil, err
	}
	return r.output, nil
}

func setup(t *testing.T, numbers ...int) (string, *config.Config) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "frames")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range numbers {
		if err := os.WriteFile(filepath.Join(dir, capture.FrameName(n)), []byte("jpg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	cfg.Paths.FramesDir = dir
	return dir, &cfg
}

func TestAssembleSuccess(t *testing.T) {
	dir, cfg := setup(t, 4, 5, 6)
	runner := &fakeRunner{}
	a := New(cfg, dirFrames(dir), logging.NewNop(), WithRunner(runner))

	out := filepath.Join(t.TempDir(), "videos", "benchy.mp4")
	result, err := a.Assemble(context.Background(), out)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "video" {
		t.Fatalf("expected published artifact, got %q err=%v", data, err)
	}
	if result.Frames != 3 || result.Path != out {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Duration != 100*time.Millisecond {
		t.Fatalf("expected 3 frames at 30fps = 100ms, got %s", result.Duration)
	}

	args := runner.calls[0]
	joined := strings.Join(args, " ")
	for _, want := range []string{"-framerate 30", "-start_number 4", "-c:v libx264", "-pix_fmt yuv420p", "-crf 23", "-f mp4"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if !slices.Contains(args, filepath.Join(dir, capture.FramePattern)) {
		t.Fatalf("expected frame pattern input in %q", joined)
	}
	if args[len(args)-1] == out {
		t.Fatal("encoder must write to a pending path, not the final artifact")
	}

	frames, _ := capture.ScanFrames(dir)
	if len(frames) != 3 {
		t.Fatalf("assembly must not delete frames, have %d", len(frames))
	}
}

func TestAssembleNoFrames(t *testing.T) {
	dir, cfg := setup(t)
	runner := &fakeRunner{}
	a := New(cfg, dirFrames(dir), logging.NewNop(), WithRunner(runner))

	_, err := a.Assemble(context.Background(), filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatal("encoder must not run without frames")
	}
}

func TestAssembleEncoderFailure(t *testing.T) {
	dir, cfg := setup(t, 1, 2)
	runner := &fakeRunner{
		output: []byte("frame_%06d.jpg: Invalid data found when processing input\nConversion failed!"),
		err:    errors.New("exit status 1"),
	}
	a := New(cfg, dirFrames(dir), logging.NewNop(), WithRunner(runner))

	outDir := t.TempDir()
	out := filepath.Join(outDir, "out.mp4")
	_, err := a.Assemble(context.Background(), out)
	if !errors.Is(err, ErrAssemblyFailed) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected assembly failure markers, got %v", err)
	}
	var asmErr *Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !strings.Contains(asmErr.Output, "Invalid data") {
		t.Fatalf("expected diagnostics, got %q", asmErr.Output)
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Fatalf("expected last output line in message, got %q", err.Error())
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("failed assembly must not publish an artifact, stat err=%v", statErr)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Fatalf("expected pending file cleaned up, found %d entries", len(entries))
	}
	frames, _ := capture.ScanFrames(dir)
	if len(frames) != 2 {
		t.Fatalf("frames must survive a failed assembly, have %d", len(frames))
	}
}

func TestMuxerFor(t *testing.T) {
	tests := map[string]string{
		"a.mp4":  "mp4",
		"a.MKV":  "matroska",
		"a.mov":  "mov",
		"a.webm": "webm",
		"a.gif":  "",
	}
	for path, want := range tests {
		if got := muxerFor(path); got != want {
			t.Fatalf("muxerFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCountGaps(t *testing.T) {
	frames := []capture.Frame{{Number: 1}, {Number: 2}, {Number: 4}, {Number: 5}, {Number: 9}}
	if got := countGaps(frames); got != 2 {
		t.Fatalf("expected 2 gaps, got %d", got)
	}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestAssembleRenumbersFramesWithGaps(t *testing.T) {
	dir, cfg := setup(t, 1, 2, 4, 5, 6)
	var seen []int
	var inputDir, startNumber string
	runner := &fakeRunner{onRun: func(args []string) {
		inputDir = filepath.Dir(argAfter(args, "-i"))
		startNumber = argAfter(args, "-start_number")
		frames, err := capture.ScanFrames(inputDir)
		if err != nil {
			t.Errorf("scan encoder input: %v", err)
		}
		for _, f := range frames {
			seen = append(seen, f.Number)
		}
	}}
	a := New(cfg, dirFrames(dir), logging.NewNop(), WithRunner(runner))

	result, err := a.Assemble(context.Background(), filepath.Join(t.TempDir(), "out.mp4"))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if inputDir == dir {
		t.Fatal("gapped frames must not be read from the frames directory directly")
	}
	if startNumber != "1" || !slices.Equal(seen, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("encoder input start=%s frames=%v, want a dense 1..5", startNumber, seen)
	}
	if result.Frames != 5 {
		t.Fatalf("result frames = %d, want 5", result.Frames)
	}
	if _, err := os.Stat(inputDir); !os.IsNotExist(err) {
		t.Fatalf("staging directory should be removed, stat err=%v", err)
	}
	frames, _ := capture.ScanFrames(dir)
	if len(frames) != 5 || frames[2].Number != 4 {
		t.Fatalf("original frames must be untouched, have %+v", frames)
	}
}

func TestRemoveStale(t *testing.T) {
	outDir := t.TempDir()
	framesDir := t.TempDir()
	for _, name := range []string{".vase_20260501.mp48675309", "vase_20260501.mp4", ".notes.txt12", ".vase.mp4"} {
		if err := os.WriteFile(filepath.Join(outDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(framesDir, StagingPrefix+"123"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(framesDir, capture.FrameName(1)), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveStale(outDir, framesDir)
	if err != nil {
		t.Fatalf("RemoveStale() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d, want 2", removed)
	}
	entries, _ := os.ReadDir(outDir)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	slices.Sort(left)
	if !slices.Equal(left, []string{".notes.txt12", ".vase.mp4", "vase_20260501.mp4"}) {
		t.Fatalf("unexpected survivors %v", left)
	}
	if frames, _ := capture.ScanFrames(framesDir); len(frames) != 1 {
		t.Fatal("frames must not be touched")
	}
}

func TestRemoveStaleMissingDirs(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if n, err := RemoveStale(missing, missing); err != nil || n != 0 {
		t.Fatalf("RemoveStale() = %d, %v", n, err)
	}
}
