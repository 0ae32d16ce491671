package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"printlapse/internal/textutil"
)

const (
	artifactTimeFormat = "20060102-150405"
	maxStemLength      = 64
	maxCollisionSuffix = 1000
)

// ArtifactName derives the video file name for a finished job: the job label
// as a filesystem-safe stem plus a timestamp, or print_<timestamp>_job<id>
// when no usable label is known.
func ArtifactName(label, jobID string, at time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	stamp := at.Format(artifactTimeFormat)
	if stem := textutil.FileStem(label, maxStemLength); stem != "" {
		return fmt.Sprintf("%s_%s.%s", stem, stamp, ext)
	}
	if id := textutil.SanitizeToken(jobID); jobID != "" && id != "unknown" {
		return fmt.Sprintf("print_%s_job%s.%s", stamp, id, ext)
	}
	return fmt.Sprintf("print_%s.%s", stamp, ext)
}

// uniquePath returns dir/name, or dir/<stem>-N<ext> for the first N >= 2
// that does not exist yet.
func uniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; n < maxCollisionSuffix; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free artifact name for %s in %s", name, dir)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
