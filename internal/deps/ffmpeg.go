package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg reports the ffmpeg binary that decode and render will run.
//
// A configured value containing a path separator must point at an
// executable file; a bare name is resolved from PATH. An empty value falls
// back to "ffmpeg".
func ResolveFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Required for audio extraction and clip rendering",
	}
	binary := strings.TrimSpace(configured)
	if binary == "" {
		binary = executableName("ffmpeg")
	}
	result.Command = binary

	if strings.ContainsRune(binary, filepath.Separator) {
		info, err := os.Stat(binary)
		if err != nil || !isExecutable(info) {
			result.Detail = fmt.Sprintf("%q is not an executable file", binary)
			return result
		}
		result.Available = true
		return result
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
