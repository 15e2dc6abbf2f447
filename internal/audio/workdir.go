package audio

import (
	"fmt"
	"os"
)

// NewTaskDir creates an isolated scratch directory under parent and returns a
// cleanup function that removes it. The cleanup is safe to call more than once.
func NewTaskDir(parent, prefix string) (string, func(), error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, fmt.Errorf("ensure work root: %w", err)
	}
	dir, err := os.MkdirTemp(parent, prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("create task dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
