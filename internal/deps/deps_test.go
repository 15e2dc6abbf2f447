package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present, 0o755)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank status: %#v", results[2])
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestResolveFFmpegFromPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	writeStub(t, ffmpegPath, 0o755)
	t.Setenv("PATH", binDir)

	status := ResolveFFmpeg("")
	if !status.Available {
		t.Fatalf("expected ffmpeg on PATH, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected %q, got %q", ffmpegPath, status.Command)
	}
}

func TestResolveFFmpegExplicitPath(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "ffmpeg-7")
	writeStub(t, custom, 0o755)
	if status := ResolveFFmpeg(custom); !status.Available || status.Command != custom {
		t.Fatalf("expected explicit binary to resolve, got %#v", status)
	}

	notExec := filepath.Join(dir, "ffmpeg-text")
	writeStub(t, notExec, 0o644)
	if status := ResolveFFmpeg(notExec); status.Available {
		t.Fatal("expected non-executable file to be rejected")
	}
}

func TestResolveFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := ResolveFFmpeg("ffmpeg")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}
