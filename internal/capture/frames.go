package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	framePrefix = "frame_"
	frameExt    = ".jpg"
	// FramePattern is the printf-style name ffmpeg writes frames with.
	FramePattern = "frame_%06d.jpg"
)

// Frame is one captured image on disk.
type Frame struct {
	Number int
	Path   string
}

// FrameName returns the file name for frame n.
func FrameName(n int) string {
	return fmt.Sprintf(FramePattern, n)
}

// ParseFrameNumber extracts the sequence number from a frame file name.
func ParseFrameNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, framePrefix) || !strings.HasSuffix(name, frameExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameExt)
	if len(digits) < 6 {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ScanFrames lists frame files in dir ordered by sequence number. A missing
// directory yields no frames and no error. Files that do not match the frame
// naming scheme are ignored.
func ScanFrames(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read frames dir: %w", err)
	}
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, ok := ParseFrameNumber(entry.Name())
		if !ok {
			continue
		}
		frames = append(frames, Frame{Number: n, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Number < frames[j].Number })
	return frames, nil
}

// clearFrames removes every frame file in dir, leaving unrelated files alone.
func clearFrames(dir string) (int, error) {
	frames, err := ScanFrames(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, frame := range frames {
		if err := os.Remove(frame.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
