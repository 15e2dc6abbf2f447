package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool. Implementations return an error
// carrying the tool's trimmed stderr when the process exits non-zero.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// RunCommand is the default CommandRunner backed by os/exec.
func RunCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// pretrained speaker and ASR checkpoints loaded through uvx.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", name, err, LastErrorLine(stderr.String()))
	}
	return nil
}

// LastErrorLine extracts the most useful line from tool stderr: the last
// Python exception if present, otherwise the last non-empty line.
func LastErrorLine(output string) string {
	msg := strings.TrimSpace(output)
	if msg == "" {
		return ""
	}
	if idx := strings.LastIndex(msg, "Error:"); idx != -1 {
		return firstLine(strings.TrimSpace(msg[idx:]))
	}
	if idx := strings.LastIndex(msg, "Exception:"); idx != -1 {
		return firstLine(strings.TrimSpace(msg[idx:]))
	}
	lines := strings.Split(msg, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return msg
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
