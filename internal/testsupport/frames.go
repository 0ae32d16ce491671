package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFrames drops placeholder JPEGs named like capture output into dir.
func WriteFrames(t testing.TB, dir string, numbers ...int) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for _, n := range numbers {
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", n))
		if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
			t.Fatalf("write frame %s: %v", path, err)
		}
	}
}

// CountFiles returns the number of regular files in dir, or zero when dir
// does not exist.
func CountFiles(t testing.TB, dir string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			count++
		}
	}
	return count
}
