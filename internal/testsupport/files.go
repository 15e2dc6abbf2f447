package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"voiceclip/internal/audio"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWAV encodes timeline to path as 16-bit PCM.
func WriteWAV(t testing.TB, path string, timeline audio.Timeline) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := audio.SaveWAV(path, timeline); err != nil {
		t.Fatalf("write wav %s: %v", path, err)
	}
}
