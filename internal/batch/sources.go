package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// CollectSources expands file and directory arguments into sources. Directories
// are scanned one level deep for names accepted by accept. Duplicate paths are
// dropped and colliding base names get a numeric suffix.
func CollectSources(args []string, accept func(name string) bool) ([]Source, error) {
	var paths []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, abs)
			continue
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || (accept != nil && !accept(entry.Name())) {
				continue
			}
			paths = append(paths, filepath.Join(abs, entry.Name()))
		}
	}

	seenPath := make(map[string]struct{}, len(paths))
	seenID := make(map[string]int, len(paths))
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		if _, dup := seenPath[path]; dup {
			continue
		}
		seenPath[path] = struct{}{}
		id := filepath.Base(path)
		seenID[id]++
		if n := seenID[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}
		sources = append(sources, Source{ID: id, Path: path})
	}
	slices.SortStableFunc(sources, func(a, b Source) int { return strings.Compare(a.Path, b.Path) })
	return sources, nil
}
