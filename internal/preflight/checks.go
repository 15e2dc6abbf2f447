package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"voiceclip/internal/config"
	"voiceclip/internal/deps"
	"voiceclip/internal/voiceprint"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free", formatBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckReference verifies that the reference fingerprint loads.
func CheckReference(path string) Result {
	const name = "Reference fingerprint"
	ref, err := voiceprint.LoadReference(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s, dim %d)", path, ref.Model, ref.Dimension)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
func CheckSystemDeps(_ context.Context, cfg *config.Config, transcription bool) []deps.Status {
	uvx := deps.Requirement{
		Name:        "uvx",
		Command:     "uvx",
		Description: "Required for the speaker embedding helper",
	}
	if transcription {
		uvx.Description = "Required for the speaker embedding helper and WhisperX transcription"
	}
	statuses := []deps.Status{deps.ResolveFFmpeg(cfg.FFmpegBinary())}
	return append(statuses, deps.CheckBinaries([]deps.Requirement{uvx})...)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
