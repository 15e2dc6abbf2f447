package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voiceclip/internal/config"
)

// resolveInputFile expands and validates a media path argument.
func resolveInputFile(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("source file path is required")
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", arg, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("source file %q not found", path)
		}
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source path %q is a directory", path)
	}
	return path, nil
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.1fs", seconds)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func formatPercent(part, whole float64) string {
	if whole <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", part/whole*100)
}
