package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogs deletes files in dir matching pattern whose modification time is
// older than maxAge, skipping every path in keep. Symlinks in keep are
// resolved so the file behind printlapse.log survives. It returns how many
// files were removed. A maxAge of zero or less disables pruning.
func PruneLogs(logger *slog.Logger, dir, pattern string, maxAge time.Duration, keep ...string) int {
	if maxAge <= 0 || dir == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}

	protected := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if path == "" {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		if abs, err := filepath.Abs(path); err == nil {
			protected[abs] = struct{}{}
		}
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, skip := protected[path]; skip {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("pruned old logs", String("dir", dir), Int("removed", removed), Duration("max_age", maxAge))
	}
	return removed
}
